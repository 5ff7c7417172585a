package subnet

import (
	"bytes"
	"fmt"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
)

// IdentifierType names which client identifier a [HostReservation] is
// keyed on, per spec.md §3.
type IdentifierType int

const (
	IdentifierHWAddr IdentifierType = iota
	IdentifierDUID
	IdentifierClientID
	IdentifierCircuitID
)

// HostReservation binds a client identifier to a fixed address within
// one subnet, per spec.md §3.
type HostReservation struct {
	IdentifierType  IdentifierType
	IdentifierBytes []byte
	Address         addr4.Address
	Hostname        string
	AllowedClasses  []string
	SubnetID        uint32
}

// reservationKey returns the (type, bytes) lookup key for r.
func (r *HostReservation) key() reservationKey {
	return reservationKey{typ: r.IdentifierType, bytes: string(r.IdentifierBytes)}
}

type reservationKey struct {
	typ   IdentifierType
	bytes string
}

// ReservationIndex looks reservations up by (subnet, identifier) or by
// (subnet, address), per spec.md §3.
type ReservationIndex struct {
	byIdentifier map[reservationKey]*HostReservation
	byAddress    map[addr4.Address]*HostReservation
}

func newReservationIndex() *ReservationIndex {
	return &ReservationIndex{
		byIdentifier: make(map[reservationKey]*HostReservation),
		byAddress:    make(map[addr4.Address]*HostReservation),
	}
}

// Add indexes r.  It returns an error if r's identifier or address is
// already reserved within the same subnet.
func (idx *ReservationIndex) Add(r *HostReservation) error {
	k := r.key()
	if existing, ok := idx.byIdentifier[k]; ok {
		return fmt.Errorf(
			"reservation for %x in subnet %d conflicts with existing reservation for %s",
			r.IdentifierBytes, r.SubnetID, existing.Address,
		)
	}

	if existing, ok := idx.byAddress[r.Address]; ok {
		return fmt.Errorf(
			"reservation for address %s in subnet %d conflicts with existing reservation %x",
			r.Address, r.SubnetID, existing.IdentifierBytes,
		)
	}

	idx.byIdentifier[k] = r
	idx.byAddress[r.Address] = r

	return nil
}

// ByIdentity looks up a reservation by identifier type and bytes.
func (idx *ReservationIndex) ByIdentity(typ IdentifierType, id []byte) (r *HostReservation, ok bool) {
	r, ok = idx.byIdentifier[reservationKey{typ: typ, bytes: string(id)}]

	return r, ok
}

// ByAddr looks up a reservation by address.
func (idx *ReservationIndex) ByAddr(a addr4.Address) (r *HostReservation, ok bool) {
	r, ok = idx.byAddress[a]

	return r, ok
}

// matches reports whether id equals r's identifier bytes for r's type.
func (r *HostReservation) matches(typ IdentifierType, id []byte) bool {
	return r.IdentifierType == typ && bytes.Equal(r.IdentifierBytes, id)
}
