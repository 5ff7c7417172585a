package pipeline

import "github.com/AdguardTeam/golibs/errors"

// Category is the error taxonomy spec.md §7 defines. Each worker-path
// failure is classified into exactly one category, which determines
// whether the query is dropped, NAKed, or retried.
type Category int

const (
	CategoryNone Category = iota
	CategoryParseError
	CategoryNoSubnet
	CategoryClassDenied
	CategoryAllocNoAddress
	CategoryAllocConflict
	CategoryAllocTransient
	CategoryInternalError
)

// ErrDropped is a sentinel used internally to signal "no response
// should be sent", distinct from an actual processing error.
const ErrDropped errors.Error = "packet dropped"
