package subnet

import (
	"fmt"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
)

// Pool is an ordered, inclusive pair of addresses, per spec.md §3.
type Pool struct {
	// ID is an opaque, monotonically assigned pool identifier.
	ID uint32

	// First and Last are the pool's inclusive bounds; First <= Last.
	First, Last addr4.Address
}

// NewPool validates and constructs a pool.  Both endpoints must form
// a non-inverted range.
func NewPool(id uint32, first, last addr4.Address) (p *Pool, err error) {
	if last.Less(first) {
		return nil, fmt.Errorf("pool %d [%s, %s]: %w", id, first, last, ErrInvertedRange)
	}

	return &Pool{ID: id, First: first, Last: last}, nil
}

// Capacity returns the number of addresses in p.
func (p *Pool) Capacity() uint32 {
	return p.Last.Subtract(p.First) + 1
}

// Contains reports whether a lies within p's inclusive bounds.
func (p *Pool) Contains(a addr4.Address) bool {
	return addr4.InRange(a, p.First, p.Last)
}

// overlaps reports whether p and o share any address, used to enforce
// spec.md §3's "pools within a subnet are disjoint" invariant.
func (p *Pool) overlaps(o *Pool) bool {
	return p.First <= o.Last && o.First <= p.Last
}

// String implements fmt.Stringer for *Pool.
func (p *Pool) String() string {
	return fmt.Sprintf("%s-%s", p.First, p.Last)
}
