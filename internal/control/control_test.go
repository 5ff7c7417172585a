package control_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zdnscloud/zdhcp-sub001/internal/control"
	"github.com/zdnscloud/zdhcp-sub001/internal/rpcwire"
)

func startServer(t *testing.T, onStop func()) (s *control.Server, conn net.Conn) {
	t.Helper()

	s, err := control.NewServer("127.0.0.1:0", slog.Default(), onStop)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() { _ = s.Serve(ctx) }()

	conn, err = net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return s, conn
}

func TestServerDispatchesRegisteredCommand(t *testing.T) {
	t.Parallel()

	s, conn := startServer(t, nil)
	s.Register("statis_lps", func(ctx context.Context, args json.RawMessage) (string, error) {
		return "0 0 0 0", nil
	})

	req, err := json.Marshal(map[string]string{"name": "statis_lps", "request_id": "r1"})
	require.NoError(t, err)
	require.NoError(t, rpcwire.WriteFrame(conn, req))

	body, err := rpcwire.ReadFrame(conn)
	require.NoError(t, err)

	var resp control.Response
	require.NoError(t, json.Unmarshal(body, &resp))
	require.True(t, resp.Succeed)
	require.Equal(t, "0 0 0 0", resp.Result)
	require.Equal(t, "r1", resp.RequestID)
}

func TestServerUnknownCommand(t *testing.T) {
	t.Parallel()

	_, conn := startServer(t, nil)

	req, err := json.Marshal(map[string]string{"name": "bogus"})
	require.NoError(t, err)
	require.NoError(t, rpcwire.WriteFrame(conn, req))

	body, err := rpcwire.ReadFrame(conn)
	require.NoError(t, err)

	var resp control.Response
	require.NoError(t, json.Unmarshal(body, &resp))
	require.False(t, resp.Succeed)
}

func TestServerStopInvokesCallback(t *testing.T) {
	t.Parallel()

	stopped := make(chan struct{})
	s, conn := startServer(t, func() { close(stopped) })

	s.Register("stop", func(ctx context.Context, args json.RawMessage) (string, error) {
		return "stopping", nil
	})

	req, err := json.Marshal(map[string]string{"name": "stop"})
	require.NoError(t, err)
	require.NoError(t, rpcwire.WriteFrame(conn, req))

	body, err := rpcwire.ReadFrame(conn)
	require.NoError(t, err)

	var resp control.Response
	require.NoError(t, json.Unmarshal(body, &resp))
	require.True(t, resp.Succeed)

	<-stopped
}
