package subnet

import (
	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
)

// Query carries the inputs [Manager.Select] needs to resolve a
// request to a subnet, per spec.md §4.4.
type Query struct {
	// GIAddr is the packet's relay address, or the zero address if
	// the packet was not relayed.
	GIAddr addr4.Address

	// IngressPrimaryAddr is the primary address of the interface the
	// packet arrived on, used when GIAddr is zero.
	IngressPrimaryAddr addr4.Address

	// LinkSelection is the address carried in Relay-Agent sub-option
	// 5 or option 118, which overrides GIAddr/IngressPrimaryAddr when
	// non-zero.
	LinkSelection addr4.Address

	// MatchedClasses is the set of client-class names the query
	// matched, as produced by [classify.Evaluate].
	MatchedClasses map[string]struct{}
}

// linkAddr returns the address selectSubnet uses to locate the link,
// applying rules 1 and 2 of spec.md §4.4.
func (q *Query) linkAddr() addr4.Address {
	if !q.LinkSelection.IsZero() {
		return q.LinkSelection
	}

	if !q.GIAddr.IsZero() {
		return q.GIAddr
	}

	return q.IngressPrimaryAddr
}

// Select resolves q to a subnet using the snapshot captured at call
// time, applying spec.md §4.4's four ordered rules. It returns
// [ErrNoSubnet] if no configured subnet is eligible.
func (m *Manager) Select(q Query) (s *Subnet, err error) {
	snap := m.cur.Load()

	link := q.linkAddr()

	base := snap.findByPrefix(link)
	if base == nil {
		return nil, ErrNoSubnet
	}

	candidates := []*Subnet{base}
	if base.SharedNetworkID != 0 {
		candidates = snap.sharedNW[base.SharedNetworkID]
	}

	var eligible []*Subnet
	for _, c := range candidates {
		if c.MatchesClasses(q.MatchedClasses) {
			eligible = append(eligible, c)
		}
	}

	if len(eligible) == 0 {
		return nil, ErrNoSubnet
	}

	if len(eligible) == 1 {
		return eligible[0], nil
	}

	return selectFromShared(snap.cursorFor(base.SharedNetworkID), eligible), nil
}

// selectFromShared applies the declaration-order iteration rule 4
// describes, starting from a rotating cursor keyed by the shared
// network's id (not by any one member subnet) so that repeated
// selections spread allocation attempts across the group regardless
// of which members a given request's client classes made eligible.
func selectFromShared(cur *sharedCursor, eligible []*Subnet) *Subnet {
	if cur == nil {
		return eligible[0]
	}

	start := int(cur.n.Add(1)-1) % len(eligible)

	return eligible[start]
}
