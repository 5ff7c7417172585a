package rpcclient_test

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zdnscloud/zdhcp-sub001/internal/rpcclient"
	"github.com/zdnscloud/zdhcp-sub001/internal/rpcwire"
)

// fakeMaster accepts one connection and answers every request with ok
// and a fixed address, mimicking enough of the master RPC contract to
// exercise the client's round trip.
func fakeMaster(t *testing.T, ln net.Listener) {
	t.Helper()

	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		body, rerr := rpcwire.ReadFrame(conn)
		if rerr != nil {
			return
		}

		req, derr := rpcwire.DecodeClientRequest(body)
		require.NoError(t, derr)
		_ = req

		resp := &rpcwire.ClientResponse{Result: rpcwire.ResultOK, YIAddr: 0xC0000002, ValidLifetime: 3600}
		require.NoError(t, rpcwire.WriteFrame(conn, resp.Encode()))
	}
}

func TestClientAllocateRoundTrip(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go fakeMaster(t, ln)

	c := rpcclient.New(rpcclient.Config{
		Addr:        ln.Addr().String(),
		Connections: 1,
		MaxRetries:  2,
		DialTimeout: time.Second,
		Backoff:     10 * time.Millisecond,
		Logger:      slog.Default(),
	})
	defer c.Close()

	done := make(chan *rpcwire.ClientResponse, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = c.Allocate(ctx, &rpcwire.ClientRequest{MsgType: rpcwire.MsgTypeDiscover, SubnetID: 1}, func(resp *rpcwire.ClientResponse, err error) {
		require.NoError(t, err)
		done <- resp
	})
	require.NoError(t, err)

	select {
	case resp := <-done:
		require.Equal(t, rpcwire.ResultOK, resp.Result)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for allocate callback")
	}
}
