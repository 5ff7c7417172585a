package option4

import "github.com/AdguardTeam/golibs/errors"

// Decode/encode failures, per spec.md §4.1's failure model: no
// exceptions escape the codec boundary, only these typed errors.
const (
	// ErrTruncated is returned when a buffer ends before a length-
	// prefixed field it announced can be read in full.
	ErrTruncated errors.Error = "truncated"

	// ErrBadMagic is returned when the DHCP magic cookie is absent or
	// doesn't match 0x63825363.
	ErrBadMagic errors.Error = "bad magic cookie"

	// ErrUnknownType is returned when a [Definition] declares a data
	// type the codec does not recognise.
	ErrUnknownType errors.Error = "unknown type for definition"

	// ErrLengthMismatch is returned when an option's payload length is
	// invalid for its declared data type (e.g. a 3-byte uint32, or an
	// address-list whose length isn't a multiple of 4).
	ErrLengthMismatch errors.Error = "length mismatch"

	// ErrOutOfRange is returned by the encoder when a field or payload
	// exceeds the range its wire representation can carry.
	ErrOutOfRange errors.Error = "out of range"
)
