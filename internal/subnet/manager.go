package subnet

import (
	"fmt"
	"sync/atomic"

	"github.com/AdguardTeam/golibs/errors"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
)

// sharedCursor is a rotation pointer shared by every subnet in one
// shared network, so the round-robin start point SPEC_FULL.md §4.4
// describes is keyed by the shared-network id rather than by whichever
// subnet happens to be first in a given request's eligible set.
type sharedCursor struct {
	n atomic.Uint32
}

// ErrNoSubnet is returned by [Manager.Select] when no configured
// subnet matches a request, corresponding to the NO_SUBNET category
// of spec.md §7.
const ErrNoSubnet errors.Error = "no subnet matches request"

// snapshot is the immutable, atomically-swapped view of a Manager's
// configuration, following the copy-on-reconfigure pattern used by
// the teacher's DHCPServer for its interfaces4/interfaces6 fields.
type snapshot struct {
	byID     map[uint32]*Subnet
	ordered  []*Subnet
	sharedNW map[uint32][]*Subnet
	cursors  map[uint32]*sharedCursor
}

// Manager holds the set of configured subnets and resolves the one a
// given request belongs to, per spec.md §4.4.
type Manager struct {
	cur atomic.Pointer[snapshot]
}

// NewManager constructs a Manager over the given subnets.  Subnet IDs
// must be unique across subnets.
func NewManager(subnets []*Subnet) (m *Manager, err error) {
	snap, err := buildSnapshot(subnets)
	if err != nil {
		return nil, err
	}

	m = &Manager{}
	m.cur.Store(snap)

	return m, nil
}

// buildSnapshot indexes subnets by id and by shared-network id.
func buildSnapshot(subnets []*Subnet) (snap *snapshot, err error) {
	snap = &snapshot{
		byID:     make(map[uint32]*Subnet, len(subnets)),
		ordered:  make([]*Subnet, len(subnets)),
		sharedNW: make(map[uint32][]*Subnet),
		cursors:  make(map[uint32]*sharedCursor),
	}

	copy(snap.ordered, subnets)

	for _, s := range subnets {
		if _, ok := snap.byID[s.ID]; ok {
			return nil, fmt.Errorf("subnet id %d: %w", s.ID, ErrDuplicateSubnetID)
		}

		snap.byID[s.ID] = s

		if s.SharedNetworkID != 0 {
			snap.sharedNW[s.SharedNetworkID] = append(snap.sharedNW[s.SharedNetworkID], s)

			if _, ok := snap.cursors[s.SharedNetworkID]; !ok {
				snap.cursors[s.SharedNetworkID] = &sharedCursor{}
			}
		}
	}

	return snap, nil
}

// cursorFor returns the rotation pointer for sharedNetworkID, or nil
// if it names no shared network (sharedNetworkID == 0).
func (snap *snapshot) cursorFor(sharedNetworkID uint32) *sharedCursor {
	return snap.cursors[sharedNetworkID]
}

// Reconfigure atomically replaces m's subnet set.  In-flight requests
// that captured the previous snapshot via [Manager.Select] continue
// to see it to completion; only subsequent calls observe the new set.
func (m *Manager) Reconfigure(subnets []*Subnet) error {
	snap, err := buildSnapshot(subnets)
	if err != nil {
		return err
	}

	m.cur.Store(snap)

	return nil
}

// ByID returns the subnet with the given id, if configured.
func (m *Manager) ByID(id uint32) (s *Subnet, ok bool) {
	snap := m.cur.Load()
	s, ok = snap.byID[id]

	return s, ok
}

// All returns every configured subnet, in configuration order.
func (m *Manager) All() []*Subnet {
	snap := m.cur.Load()
	out := make([]*Subnet, len(snap.ordered))
	copy(out, snap.ordered)

	return out
}

// findByPrefix returns the subnet whose prefix contains a, or nil.
func (snap *snapshot) findByPrefix(a addr4.Address) *Subnet {
	for _, s := range snap.ordered {
		if s.Contains(a) {
			return s
		}
	}

	return nil
}

// sharedWith returns the other subnets, if any, that share s's
// shared-network id, not including s itself.
func (snap *snapshot) sharedWith(s *Subnet) []*Subnet {
	if s.SharedNetworkID == 0 {
		return nil
	}

	group := snap.sharedNW[s.SharedNetworkID]
	out := make([]*Subnet, 0, len(group))
	for _, o := range group {
		if o.ID != s.ID {
			out = append(out, o)
		}
	}

	return out
}
