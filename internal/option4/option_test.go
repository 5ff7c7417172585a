package option4_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/option4"
)

func TestCollectionRoundTrip(t *testing.T) {
	t.Parallel()

	space := option4.NewDHCP4Space()

	c := option4.NewCollection()
	c.Add(option4.NewUint8(option4.CodeDHCPMessageType, "dhcp-message-type", 1))
	a, err := addr4.Parse("192.0.2.1")
	require.NoError(t, err)
	c.Add(option4.NewAddr(option4.CodeServerIdentifier, "dhcp-server-identifier", a))
	c.Add(option4.NewString(option4.CodeHostname, "hostname", "client1"))

	buf, err := c.Encode()
	require.NoError(t, err)
	buf = append(buf, byte(option4.CodeEnd))

	decoded, err := option4.DecodeAll(buf, space, nil)
	require.NoError(t, err)

	msgType, ok := decoded.GetFirst(option4.CodeDHCPMessageType)
	require.True(t, ok)
	assert.Equal(t, uint8(1), msgType.Uint8())

	srvID, ok := decoded.GetFirst(option4.CodeServerIdentifier)
	require.True(t, ok)
	assert.Equal(t, "192.0.2.1", srvID.Addrs[0].String())

	host, ok := decoded.GetFirst(option4.CodeHostname)
	require.True(t, ok)
	assert.Equal(t, "client1", host.String())
}

func TestDecodeAllSkipsPadAndStopsAtEnd(t *testing.T) {
	t.Parallel()

	buf := []byte{byte(option4.CodePad), byte(option4.CodePad), byte(option4.CodeDHCPMessageType), 1, 3, byte(option4.CodeEnd), 9, 9, 9}

	c, err := option4.DecodeAll(buf, option4.NewDHCP4Space(), nil)
	require.NoError(t, err)

	opt, ok := c.GetFirst(option4.CodeDHCPMessageType)
	require.True(t, ok)
	assert.Equal(t, uint8(3), opt.Uint8())
}

func TestDecodeAllTruncated(t *testing.T) {
	t.Parallel()

	buf := []byte{byte(option4.CodeDHCPMessageType), 4, 1}

	_, err := option4.DecodeAll(buf, option4.NewDHCP4Space(), nil)
	require.ErrorIs(t, err, option4.ErrTruncated)
}

func TestScalarLengthMismatch(t *testing.T) {
	t.Parallel()

	buf := []byte{byte(option4.CodeDHCPMessageType), 2, 1, 2}

	_, err := option4.DecodeAll(buf, option4.NewDHCP4Space(), nil)
	require.ErrorIs(t, err, option4.ErrLengthMismatch)
}

func TestVendorEncapsulation(t *testing.T) {
	t.Parallel()

	vendorSpace := option4.NewSpace("vendor-9")
	require.NoError(t, vendorSpace.Register(&option4.Definition{
		Name: "sub1",
		Code: 1,
		Type: option4.TypeString,
	}))

	inner := option4.NewCollection()
	inner.Add(option4.NewString(1, "sub1", "hi"))
	innerBuf, err := inner.Encode()
	require.NoError(t, err)

	outer := option4.NewCollection()
	outer.Add(option4.Option{
		Code:         option4.CodeVendorEncapsulated,
		Kind:         option4.TypeVendor,
		EnterpriseID: 9,
		Vendor:       inner,
	})

	buf, err := outer.Encode()
	require.NoError(t, err)
	buf = append(buf, byte(option4.CodeEnd))

	vendorSpaces := map[uint32]*option4.Space{9: vendorSpace}
	decoded, err := option4.DecodeAll(buf, option4.NewDHCP4Space(), vendorSpaces)
	require.NoError(t, err)

	vopt, ok := decoded.GetFirst(option4.CodeVendorEncapsulated)
	require.True(t, ok)
	assert.Equal(t, uint32(9), vopt.EnterpriseID)

	sub, ok := vopt.Vendor.GetFirst(1)
	require.True(t, ok)
	assert.Equal(t, "hi", sub.String())
}

func TestDefinitionValidate(t *testing.T) {
	t.Parallel()

	space := option4.NewSpace("test")

	err := space.Register(&option4.Definition{Name: "bad-array-vendor", Code: 200, Array: true, EncapSpace: option4.NewSpace("x")})
	assert.Error(t, err)

	err = space.Register(&option4.Definition{Name: "bad-record", Code: 201, Type: option4.TypeCustom})
	assert.Error(t, err)
}

func TestAddressListTooLong(t *testing.T) {
	t.Parallel()

	addrs := make([]addr4.Address, 64)
	o := option4.NewAddrList(3, "routers", addrs)

	_, err := o.Encode()
	require.ErrorIs(t, err, option4.ErrOutOfRange)
}
