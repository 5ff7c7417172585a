package subnet

import (
	"fmt"
	"sync"
	"time"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/option4"
)

// ReservationMode controls whether a subnet's pools may hand out
// addresses that are also reserved elsewhere, per spec.md §3.
type ReservationMode int

const (
	// ReservationDisabled means host reservations are not consulted
	// for this subnet.
	ReservationDisabled ReservationMode = iota

	// ReservationOutOfPool means reserved addresses must lie outside
	// every pool.
	ReservationOutOfPool

	// ReservationAll means reserved addresses may also lie within a
	// pool and are excluded from dynamic allocation there.
	ReservationAll
)

// Lifetime is a (minimum, default, maximum) triple used for a
// subnet's T1, T2, and valid-lease timers, per spec.md §3.
type Lifetime struct {
	Min, Default, Max time.Duration
}

// Validate reports whether l's three values are in non-decreasing
// order.
func (l Lifetime) Validate() error {
	if l.Min > l.Default || l.Default > l.Max {
		return fmt.Errorf("lifetime %v/%v/%v is not min <= default <= max", l.Min, l.Default, l.Max)
	}

	return nil
}

// Subnet is one configured DHCPv4 subnet, per spec.md §3.
type Subnet struct {
	// ID is a unique, opaque identifier assigned at load time.
	ID uint32

	// Prefix and PrefixLen describe the subnet's network range.
	Prefix    addr4.Address
	PrefixLen int

	// SharedNetworkID groups subnets that share one physical link, or
	// is zero if this subnet is not part of a shared network.
	SharedNetworkID uint32

	pools []*Pool

	// AllowClientClasses and DenyClientClasses gate selection by the
	// classes a client matched, per spec.md §4.4 rule 3. A subnet with
	// a non-empty allow list only accepts clients matching at least
	// one named class; a client matching any deny-listed class is
	// always rejected.
	AllowClientClasses []string
	DenyClientClasses  []string

	// Reservations indexes this subnet's host reservations.
	Reservations *ReservationIndex

	// ReservationMode controls reservation/pool interaction.
	ReservationMode ReservationMode

	// MatchClientID selects whether allocation keys off the DHCP
	// client-identifier option (when present) or the hardware
	// address.
	MatchClientID bool

	// Valid, T1, and T2 are the lease and renewal timer triples
	// offered to clients of this subnet.
	Valid, T1, T2 Lifetime

	// Options are the option values returned to clients of this
	// subnet, layered over any global defaults by the caller.
	Options *option4.Collection

	// NextServerAddr overrides the outgoing packet's siaddr when
	// non-zero.
	NextServerAddr addr4.Address

	// RelayAddr is the relay (giaddr) address associated with this
	// subnet for relayed exchanges, or zero if none is pinned.
	RelayAddr addr4.Address

	mu            sync.Mutex
	lastAllocated addr4.Address
}

// NewSubnet constructs an empty subnet over the given prefix.
func NewSubnet(id uint32, prefix addr4.Address, prefixLen int) *Subnet {
	return &Subnet{
		ID:           id,
		Prefix:       addr4.FirstInNetwork(prefix, prefixLen),
		PrefixLen:    prefixLen,
		Reservations: newReservationIndex(),
		Options:      option4.NewCollection(),
	}
}

// AddPool appends a pool to s, enforcing that it lies within s's
// prefix and is disjoint from every pool already added.
func (s *Subnet) AddPool(p *Pool) error {
	first, last := addr4.FirstInNetwork(s.Prefix, s.PrefixLen), addr4.LastInNetwork(s.Prefix, s.PrefixLen)
	if p.First.Less(first) || last.Less(p.Last) {
		return fmt.Errorf("pool %s in subnet %d: %w", p, s.ID, ErrOutsidePrefix)
	}

	for _, existing := range s.pools {
		if existing.overlaps(p) {
			return fmt.Errorf("pool %s overlaps pool %s in subnet %d: %w", p, existing, s.ID, ErrDisjoint)
		}
	}

	s.pools = append(s.pools, p)

	return nil
}

// Pools returns s's configured pools in the order they were added.
func (s *Subnet) Pools() []*Pool {
	return s.pools
}

// Contains reports whether a lies within s's network prefix.
func (s *Subnet) Contains(a addr4.Address) bool {
	return addr4.InRange(a, addr4.FirstInNetwork(s.Prefix, s.PrefixLen), addr4.LastInNetwork(s.Prefix, s.PrefixLen))
}

// ContainsInPool reports whether a lies within one of s's pools.
func (s *Subnet) ContainsInPool(a addr4.Address) bool {
	for _, p := range s.pools {
		if p.Contains(a) {
			return true
		}
	}

	return false
}

// MatchesClasses reports whether a client that matched the classes in
// matched is eligible for s, applying the deny list first and then
// the allow list, per spec.md §4.4 rule 3.
func (s *Subnet) MatchesClasses(matched map[string]struct{}) bool {
	for _, deny := range s.DenyClientClasses {
		if _, ok := matched[deny]; ok {
			return false
		}
	}

	if len(s.AllowClientClasses) == 0 {
		return true
	}

	for _, allow := range s.AllowClientClasses {
		if _, ok := matched[allow]; ok {
			return true
		}
	}

	return false
}

// LastAllocated returns the subnet's last-allocated address cursor,
// per spec.md §3/§5: readers see a monotonically advancing value as
// the master grants leases from this subnet.
func (s *Subnet) LastAllocated() addr4.Address {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastAllocated
}

// SetLastAllocated records a as this subnet's most recently granted
// address, updated under s's own lock per spec.md §5's "each subnet's
// last_allocated is updated under that subnet's mutex."
func (s *Subnet) SetLastAllocated(a addr4.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastAllocated = a
}
