package rpcwire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/rpcwire"
)

func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, rpcwire.WriteFrame(&buf, []byte("hello")))

	got, err := rpcwire.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestFrameRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := rpcwire.WriteFrame(&buf, make([]byte, rpcwire.MaxBodyLen+1))
	assert.ErrorIs(t, err, rpcwire.ErrBodyTooLarge)
}

func TestClientRequestRoundTrip(t *testing.T) {
	t.Parallel()

	addr, err := addr4.Parse("192.0.2.10")
	require.NoError(t, err)

	req := &rpcwire.ClientRequest{
		MsgType:        rpcwire.MsgTypeRequest,
		SubnetID:       7,
		SharedSubnetID: 0,
		ClientID:       []byte{0x01, 0xaa, 0xbb},
		HWAddr:         []byte{0, 1, 2, 3, 4, 5},
		RequestedAddr:  addr,
		Hostname:       "host1",
		RetryCount:     2,
	}

	got, err := rpcwire.DecodeClientRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestClientResponseRoundTrip(t *testing.T) {
	t.Parallel()

	yi, err := addr4.Parse("192.0.2.20")
	require.NoError(t, err)
	sid, err := addr4.Parse("192.0.2.1")
	require.NoError(t, err)

	resp := &rpcwire.ClientResponse{
		Result:        rpcwire.ResultOK,
		YIAddr:        yi,
		ValidLifetime: 3600,
		T1:            1800,
		T2:            3150,
		ServerID:      sid,
	}

	got, err := rpcwire.DecodeClientResponse(resp.Encode())
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}
