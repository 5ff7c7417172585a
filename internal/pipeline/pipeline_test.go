package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/clientctx"
	"github.com/zdnscloud/zdhcp-sub001/internal/iface"
	"github.com/zdnscloud/zdhcp-sub001/internal/option4"
	"github.com/zdnscloud/zdhcp-sub001/internal/packet4"
	"github.com/zdnscloud/zdhcp-sub001/internal/subnet"
)

func mustAddr(t *testing.T, s string) addr4.Address {
	t.Helper()

	a, err := addr4.Parse(s)
	require.NoError(t, err)

	return a
}

func newQuery(t *testing.T, msgType packet4.MsgType) *packet4.Packet {
	t.Helper()

	p := packet4.New()
	p.Op = packet4.OpBootRequest
	p.HType = 1
	p.HLen = 6
	p.Xid = 0xabcdef01
	copy(p.CHAddr[:], []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55})
	p.Options.Add(option4.NewUint8(option4.CodeDHCPMessageType, "dhcp-message-type", uint8(msgType)))

	return p
}

func newTestContext(t *testing.T, msgType packet4.MsgType) *clientctx.Context {
	t.Helper()

	sub := subnet.NewSubnet(1, mustAddr(t, "192.0.2.0"), 24)
	sub.Valid = subnet.Lifetime{Min: time.Hour, Default: 2 * time.Hour, Max: 4 * time.Hour}

	return &clientctx.Context{
		Received: &iface.Received{
			Packet: newQuery(t, msgType),
			Iface:  &iface.Interface{Name: "eth0"},
		},
		Subnet:        sub,
		ServerID:      mustAddr(t, "192.0.2.1"),
		ValidLifetime: 7200,
		T1:            3600,
		T2:            6300,
	}
}

func TestBuildOfferSetsMessageTypeAndAddress(t *testing.T) {
	t.Parallel()

	c := newTestContext(t, packet4.MsgDiscover)

	resp := buildOffer(c, uint32(mustAddr(t, "192.0.2.10")))

	assert.Equal(t, packet4.OpBootReply, resp.Op)
	assert.Equal(t, mustAddr(t, "192.0.2.10"), resp.YIAddr)
	assert.Equal(t, c.Received.Packet.Xid, resp.Xid)

	mt, ok := resp.Options.GetFirst(option4.CodeDHCPMessageType)
	require.True(t, ok)
	assert.Equal(t, uint8(packet4.MsgOffer), mt.Raw[0])

	lease, ok := resp.Options.GetFirst(option4.CodeIPAddressLeaseTime)
	require.True(t, ok)
	assert.Equal(t, c.ValidLifetime, lease.Uint32())
}

func TestBuildNakCarriesNoLeaseOptions(t *testing.T) {
	t.Parallel()

	c := newTestContext(t, packet4.MsgRequest)

	resp := buildNak(c)

	mt, ok := resp.Options.GetFirst(option4.CodeDHCPMessageType)
	require.True(t, ok)
	assert.Equal(t, uint8(packet4.MsgNak), mt.Raw[0])

	_, hasLease := resp.Options.GetFirst(option4.CodeIPAddressLeaseTime)
	assert.False(t, hasLease)
}

func TestBuildInformAckUsesQueryCIAddr(t *testing.T) {
	t.Parallel()

	c := newTestContext(t, packet4.MsgInform)
	c.Received.Packet.CIAddr = mustAddr(t, "192.0.2.50")

	resp := buildInformAck(c)

	assert.Equal(t, mustAddr(t, "192.0.2.50"), resp.YIAddr)

	mt, ok := resp.Options.GetFirst(option4.CodeDHCPMessageType)
	require.True(t, ok)
	assert.Equal(t, uint8(packet4.MsgAck), mt.Raw[0])
}

func TestLeaseTimersDefaultsHalfAndSevenEighths(t *testing.T) {
	t.Parallel()

	c := newTestContext(t, packet4.MsgRequest)
	c.Subnet.T1 = subnet.Lifetime{}
	c.Subnet.T2 = subnet.Lifetime{}

	valid, t1, t2 := leaseTimers(c)

	assert.Equal(t, uint32(7200), valid)
	assert.Equal(t, uint32(3600), t1)
	assert.Equal(t, uint32(6300), t2)
}

func TestDestinationForBroadcastFlag(t *testing.T) {
	t.Parallel()

	resp := packet4.New()
	resp.Flags = 0x8000
	resp.CIAddr = mustAddr(t, "192.0.2.50")

	assert.Equal(t, addr4.Broadcast, destinationFor(resp))
}

func TestDestinationForUnicastPrefersGIAddr(t *testing.T) {
	t.Parallel()

	resp := packet4.New()
	resp.CIAddr = mustAddr(t, "192.0.2.50")
	resp.GIAddr = mustAddr(t, "192.0.2.1")
	resp.YIAddr = mustAddr(t, "192.0.2.10")

	assert.Equal(t, mustAddr(t, "192.0.2.1"), destinationFor(resp))
}

func TestDestinationForUnicastFallsBackToYIAddr(t *testing.T) {
	t.Parallel()

	resp := packet4.New()
	resp.CIAddr = mustAddr(t, "192.0.2.50")
	resp.YIAddr = mustAddr(t, "192.0.2.10")

	assert.Equal(t, mustAddr(t, "192.0.2.10"), destinationFor(resp))
}

func TestRequestedAddressAbsent(t *testing.T) {
	t.Parallel()

	pkt := newQuery(t, packet4.MsgDiscover)

	assert.True(t, requestedAddress(pkt).IsZero())
}

func TestServerIdentifierPrefersSubnetRelayAddr(t *testing.T) {
	t.Parallel()

	sub := subnet.NewSubnet(1, mustAddr(t, "192.0.2.0"), 24)
	sub.RelayAddr = mustAddr(t, "192.0.2.254")

	rcv := &iface.Received{Iface: &iface.Interface{PrimaryV4: mustAddr(t, "10.0.0.1")}}

	assert.Equal(t, mustAddr(t, "192.0.2.254"), serverIdentifierFor(rcv, sub))
}

func TestServerIdentifierFallsBackToIngressAddr(t *testing.T) {
	t.Parallel()

	sub := subnet.NewSubnet(1, mustAddr(t, "192.0.2.0"), 24)

	rcv := &iface.Received{Iface: &iface.Interface{PrimaryV4: mustAddr(t, "10.0.0.1")}}

	assert.Equal(t, mustAddr(t, "10.0.0.1"), serverIdentifierFor(rcv, sub))
}
