package iface

import "fmt"

// FilterKind selects which [Filter] implementation [Open] constructs.
type FilterKind int

const (
	FilterInet FilterKind = iota
	FilterLPF
)

// Open opens a filter of the given kind bound to i.
func Open(i *Interface, kind FilterKind) (f Filter, err error) {
	switch kind {
	case FilterInet:
		return NewInetFilter(i)
	case FilterLPF:
		return NewLPFFilter(i)
	default:
		return nil, fmt.Errorf("unknown filter kind %d", kind)
	}
}
