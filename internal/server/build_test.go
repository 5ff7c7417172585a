package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/config"
	"github.com/zdnscloud/zdhcp-sub001/internal/option4"
)

func TestParseCIDR(t *testing.T) {
	t.Parallel()

	a, n, err := parseCIDR("192.0.2.0/24")
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	want, err := addr4.Parse("192.0.2.0")
	require.NoError(t, err)
	assert.Equal(t, want, a)
}

func TestParseCIDRRejectsMissingLength(t *testing.T) {
	t.Parallel()

	_, _, err := parseCIDR("192.0.2.0")
	assert.Error(t, err)
}

func TestParseCIDRRejectsOutOfRangeLength(t *testing.T) {
	t.Parallel()

	_, _, err := parseCIDR("192.0.2.0/33")
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	t.Parallel()

	first, last, err := parseRange("192.0.2.10 - 192.0.2.20")
	require.NoError(t, err)

	wantFirst, _ := addr4.Parse("192.0.2.10")
	wantLast, _ := addr4.Parse("192.0.2.20")
	assert.Equal(t, wantFirst, first)
	assert.Equal(t, wantLast, last)
}

func TestParseRangeRejectsMalformed(t *testing.T) {
	t.Parallel()

	_, _, err := parseRange("192.0.2.10")
	assert.Error(t, err)
}

func TestBuildOptionAddrList(t *testing.T) {
	t.Parallel()

	opt, err := buildOption(config.OptionData{
		Code: int(option4.CodeRouter),
		Data: "192.0.2.1, 192.0.2.2",
	})
	require.NoError(t, err)

	require.Len(t, opt.Addrs, 2)
	want1, _ := addr4.Parse("192.0.2.1")
	want2, _ := addr4.Parse("192.0.2.2")
	assert.Equal(t, want1, opt.Addrs[0])
	assert.Equal(t, want2, opt.Addrs[1])
}

func TestBuildOptionUint32(t *testing.T) {
	t.Parallel()

	opt, err := buildOption(config.OptionData{
		Code: int(option4.CodeIPAddressLeaseTime),
		Data: "3600",
	})
	require.NoError(t, err)

	assert.Equal(t, uint32(3600), opt.Uint32())
}

func TestBuildOptionUnknownCodeFallsBackToRaw(t *testing.T) {
	t.Parallel()

	opt, err := buildOption(config.OptionData{
		Name: "custom",
		Code: 222,
		Data: "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("hello"), opt.Raw)
}

func TestBuildSubnetWiresPoolsAndOptions(t *testing.T) {
	t.Parallel()

	sub, err := buildSubnet(config.Subnet4{
		ID:     1,
		Subnet: "192.0.2.0/24",
		Pools: []config.Pool{
			{PoolRange: "192.0.2.10-192.0.2.100"},
		},
		ClientClass: "voip",
		OptionData: []config.OptionData{
			{Code: int(option4.CodeRouter), Data: "192.0.2.1"},
		},
		ValidLifetime:   1800,
		SharedNetworkID: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, uint32(7), sub.SharedNetworkID)
	assert.Equal(t, []string{"voip"}, sub.AllowClientClasses)

	_, ok := sub.Options.GetFirst(option4.CodeRouter)
	assert.True(t, ok)
}

func TestBuildClassesCompilesEachEntry(t *testing.T) {
	t.Parallel()

	classes, err := buildClasses([]config.ClientClass{
		{Name: "voip", Test: `option[vendor-class-identifier] == 'VOIP'`},
	})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "voip", classes[0].Name)
}

func TestConnectionsOrDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, defaultConnections, connectionsOrDefault(0))
	assert.Equal(t, 9, connectionsOrDefault(9))
}

func TestContains(t *testing.T) {
	t.Parallel()

	assert.True(t, contains([]string{"eth0", "eth1"}, "eth1"))
	assert.False(t, contains([]string{"eth0"}, "eth2"))
}
