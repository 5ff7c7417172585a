package packet4_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/option4"
	"github.com/zdnscloud/zdhcp-sub001/internal/packet4"
)

func newDiscover(t *testing.T) *packet4.Packet {
	t.Helper()

	p := packet4.New()
	p.Op = packet4.OpBootRequest
	p.HType = 1
	p.HLen = 6
	p.Xid = 0xdeadbeef
	copy(p.CHAddr[:6], []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55})
	p.Options.Add(option4.NewUint8(option4.CodeDHCPMessageType, "dhcp-message-type", uint8(packet4.MsgDiscover)))

	return p
}

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	p := newDiscover(t)

	buf, err := p.Encode()
	require.NoError(t, err)

	space := option4.NewDHCP4Space()
	decoded, err := packet4.Decode(buf, space, nil)
	require.NoError(t, err)

	assert.Equal(t, p.Xid, decoded.Xid)
	assert.Equal(t, p.HLen, decoded.HLen)

	typ, err := decoded.Type()
	require.NoError(t, err)
	assert.Equal(t, packet4.MsgDiscover, typ)
	assert.Equal(t, "00:11:22:33:44:55", decoded.HardwareAddr().String())
}

func TestDecodeRejectsOversizedPacket(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 1501)
	_, err := packet4.Decode(buf, option4.NewDHCP4Space(), nil)
	require.Error(t, err)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	t.Parallel()

	p := newDiscover(t)
	buf, err := p.Encode()
	require.NoError(t, err)

	buf[236] = 0

	_, err = packet4.Decode(buf, option4.NewDHCP4Space(), nil)
	require.ErrorIs(t, err, option4.ErrBadMagic)
}

func TestRequestedAddress(t *testing.T) {
	t.Parallel()

	p := newDiscover(t)
	a, err := addr4.Parse("192.0.2.50")
	require.NoError(t, err)
	p.Options.Add(option4.NewAddr(option4.CodeRequestedIPAddress, "requested-address", a))

	got, ok := p.RequestedAddress()
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestClientIDFallsBackToHardwareAddr(t *testing.T) {
	t.Parallel()

	p := newDiscover(t)
	assert.Equal(t, []byte(p.HardwareAddr()), p.ClientID())
}
