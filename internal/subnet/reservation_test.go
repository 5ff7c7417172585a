package subnet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdnscloud/zdhcp-sub001/internal/subnet"
)

func TestReservationLookup(t *testing.T) {
	t.Parallel()

	s := newTestSubnet(t, 1, "192.0.2.0", 24, "192.0.2.10", "192.0.2.20")

	r := &subnet.HostReservation{
		IdentifierType:  subnet.IdentifierHWAddr,
		IdentifierBytes: []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		Address:         mustAddr(t, "192.0.2.5"),
		Hostname:        "printer",
		SubnetID:        s.ID,
	}

	require.NoError(t, s.Reservations.Add(r))

	got, ok := s.Reservations.ByIdentity(subnet.IdentifierHWAddr, []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55})
	require.True(t, ok)
	assert.Equal(t, "printer", got.Hostname)

	byAddr, ok := s.Reservations.ByAddr(mustAddr(t, "192.0.2.5"))
	require.True(t, ok)
	assert.Equal(t, got, byAddr)

	_, ok = s.Reservations.ByIdentity(subnet.IdentifierHWAddr, []byte{0xff})
	assert.False(t, ok)
}

func TestReservationDuplicateIdentifierRejected(t *testing.T) {
	t.Parallel()

	s := newTestSubnet(t, 1, "192.0.2.0", 24, "192.0.2.10", "192.0.2.20")

	r1 := &subnet.HostReservation{
		IdentifierType:  subnet.IdentifierHWAddr,
		IdentifierBytes: []byte{0x01},
		Address:         mustAddr(t, "192.0.2.5"),
		SubnetID:        s.ID,
	}
	require.NoError(t, s.Reservations.Add(r1))

	r2 := &subnet.HostReservation{
		IdentifierType:  subnet.IdentifierHWAddr,
		IdentifierBytes: []byte{0x01},
		Address:         mustAddr(t, "192.0.2.6"),
		SubnetID:        s.ID,
	}
	err := s.Reservations.Add(r2)
	assert.Error(t, err)
}
