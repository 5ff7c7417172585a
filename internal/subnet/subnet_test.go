package subnet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/subnet"
)

func mustAddr(t *testing.T, s string) addr4.Address {
	t.Helper()

	a, err := addr4.Parse(s)
	require.NoError(t, err)

	return a
}

func newTestSubnet(t *testing.T, id uint32, prefix string, prefixLen int, poolFirst, poolLast string) *subnet.Subnet {
	t.Helper()

	s := subnet.NewSubnet(id, mustAddr(t, prefix), prefixLen)

	p, err := subnet.NewPool(1, mustAddr(t, poolFirst), mustAddr(t, poolLast))
	require.NoError(t, err)

	require.NoError(t, s.AddPool(p))

	return s
}

func TestPoolDisjointness(t *testing.T) {
	t.Parallel()

	s := newTestSubnet(t, 1, "192.0.2.0", 24, "192.0.2.10", "192.0.2.20")

	overlap, err := subnet.NewPool(2, mustAddr(t, "192.0.2.15"), mustAddr(t, "192.0.2.25"))
	require.NoError(t, err)

	err = s.AddPool(overlap)
	require.ErrorIs(t, err, subnet.ErrDisjoint)
}

func TestPoolOutsidePrefix(t *testing.T) {
	t.Parallel()

	s := subnet.NewSubnet(1, mustAddr(t, "192.0.2.0"), 24)

	p, err := subnet.NewPool(1, mustAddr(t, "198.51.100.1"), mustAddr(t, "198.51.100.10"))
	require.NoError(t, err)

	err = s.AddPool(p)
	require.ErrorIs(t, err, subnet.ErrOutsidePrefix)
}

func TestInvertedPoolRejected(t *testing.T) {
	t.Parallel()

	_, err := subnet.NewPool(1, mustAddr(t, "192.0.2.20"), mustAddr(t, "192.0.2.10"))
	require.ErrorIs(t, err, subnet.ErrInvertedRange)
}

func TestMatchesClassesAllowDeny(t *testing.T) {
	t.Parallel()

	s := newTestSubnet(t, 1, "192.0.2.0", 24, "192.0.2.10", "192.0.2.20")
	s.AllowClientClasses = []string{"msft"}

	assert.True(t, s.MatchesClasses(map[string]struct{}{"msft": {}}))
	assert.False(t, s.MatchesClasses(map[string]struct{}{"other": {}}))

	s.DenyClientClasses = []string{"blocked"}
	assert.False(t, s.MatchesClasses(map[string]struct{}{"msft": {}, "blocked": {}}))
}

func TestLastAllocatedAdvancesMonotonically(t *testing.T) {
	t.Parallel()

	s := newTestSubnet(t, 1, "192.0.2.0", 24, "192.0.2.10", "192.0.2.20")
	assert.True(t, s.LastAllocated().IsZero())

	s.SetLastAllocated(mustAddr(t, "192.0.2.10"))
	assert.Equal(t, mustAddr(t, "192.0.2.10"), s.LastAllocated())

	s.SetLastAllocated(mustAddr(t, "192.0.2.11"))
	assert.Equal(t, mustAddr(t, "192.0.2.11"), s.LastAllocated())
}

func TestManagerSelectRotatesAcrossSharedNetwork(t *testing.T) {
	t.Parallel()

	a := newTestSubnet(t, 1, "192.0.2.0", 25, "192.0.2.10", "192.0.2.20")
	b := newTestSubnet(t, 2, "192.0.2.128", 25, "192.0.2.138", "192.0.2.148")
	a.SharedNetworkID = 7
	b.SharedNetworkID = 7

	m, err := subnet.NewManager([]*subnet.Subnet{a, b})
	require.NoError(t, err)

	var ids []uint32
	for i := 0; i < 4; i++ {
		got, serr := m.Select(subnet.Query{GIAddr: mustAddr(t, "192.0.2.1")})
		require.NoError(t, serr)
		ids = append(ids, got.ID)
	}

	assert.Equal(t, []uint32{1, 2, 1, 2}, ids)
}

func TestManagerSelectByGIAddr(t *testing.T) {
	t.Parallel()

	a := newTestSubnet(t, 1, "192.0.2.0", 24, "192.0.2.10", "192.0.2.20")
	b := newTestSubnet(t, 2, "198.51.100.0", 24, "198.51.100.10", "198.51.100.20")

	m, err := subnet.NewManager([]*subnet.Subnet{a, b})
	require.NoError(t, err)

	got, err := m.Select(subnet.Query{GIAddr: mustAddr(t, "192.0.2.1")})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.ID)
}

func TestManagerSelectLinkSelectionOverridesGIAddr(t *testing.T) {
	t.Parallel()

	a := newTestSubnet(t, 1, "192.0.2.0", 24, "192.0.2.10", "192.0.2.20")
	b := newTestSubnet(t, 2, "198.51.100.0", 24, "198.51.100.10", "198.51.100.20")

	m, err := subnet.NewManager([]*subnet.Subnet{a, b})
	require.NoError(t, err)

	got, err := m.Select(subnet.Query{
		GIAddr:        mustAddr(t, "192.0.2.1"),
		LinkSelection: mustAddr(t, "198.51.100.1"),
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.ID)
}

func TestManagerSelectClassFilterBreaksGIAddrTie(t *testing.T) {
	t.Parallel()

	a := newTestSubnet(t, 1, "192.0.2.0", 25, "192.0.2.10", "192.0.2.20")
	b := newTestSubnet(t, 2, "192.0.2.128", 25, "192.0.2.138", "192.0.2.148")
	a.SharedNetworkID = 7
	b.SharedNetworkID = 7
	a.AllowClientClasses = []string{"msft"}
	b.DenyClientClasses = []string{"msft"}

	m, err := subnet.NewManager([]*subnet.Subnet{a, b})
	require.NoError(t, err)

	got, err := m.Select(subnet.Query{
		GIAddr:         mustAddr(t, "192.0.2.1"),
		MatchedClasses: map[string]struct{}{"msft": {}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.ID)
}

func TestManagerSelectNoEligibleSubnet(t *testing.T) {
	t.Parallel()

	a := newTestSubnet(t, 1, "192.0.2.0", 24, "192.0.2.10", "192.0.2.20")

	m, err := subnet.NewManager([]*subnet.Subnet{a})
	require.NoError(t, err)

	_, err = m.Select(subnet.Query{GIAddr: mustAddr(t, "203.0.113.1")})
	require.ErrorIs(t, err, subnet.ErrNoSubnet)
}

func TestManagerReconfigureSwapsSnapshot(t *testing.T) {
	t.Parallel()

	a := newTestSubnet(t, 1, "192.0.2.0", 24, "192.0.2.10", "192.0.2.20")
	m, err := subnet.NewManager([]*subnet.Subnet{a})
	require.NoError(t, err)

	b := newTestSubnet(t, 2, "198.51.100.0", 24, "198.51.100.10", "198.51.100.20")
	require.NoError(t, m.Reconfigure([]*subnet.Subnet{b}))

	_, ok := m.ByID(1)
	assert.False(t, ok)

	got, ok := m.ByID(2)
	require.True(t, ok)
	assert.Equal(t, uint32(2), got.ID)
}

func TestManagerDuplicateSubnetID(t *testing.T) {
	t.Parallel()

	a := newTestSubnet(t, 1, "192.0.2.0", 24, "192.0.2.10", "192.0.2.20")
	b := newTestSubnet(t, 1, "198.51.100.0", 24, "198.51.100.10", "198.51.100.20")

	_, err := subnet.NewManager([]*subnet.Subnet{a, b})
	require.ErrorIs(t, err, subnet.ErrDuplicateSubnetID)
}
