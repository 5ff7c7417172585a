// Package rpcclient implements the slave's connection to the master
// lease-allocation service described in spec.md §4.6.
package rpcclient

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"

	"github.com/zdnscloud/zdhcp-sub001/internal/queue"
	"github.com/zdnscloud/zdhcp-sub001/internal/rpcwire"
)

// Callback is invoked exactly once per [Record], either with a
// decoded response, a response whose Result is
// [rpcwire.ResultTransient] after retries are exhausted, or
// [ErrCancelled] on shutdown.
type Callback func(resp *rpcwire.ClientResponse, err error)

// ErrCancelled is passed to a [Record]'s callback when the client
// shuts down with the record still in flight.
const ErrCancelled errors.Error = "rpc client shut down with request in flight"

// Record is one allocation request together with the callback that
// resumes the owning worker's pipeline stage.
type Record struct {
	Request    *rpcwire.ClientRequest
	Callback   Callback
	retryCount uint32
}

// Config configures a [Client].
type Config struct {
	// Addr is the master's host:port.
	Addr string

	// Connections is the number of persistent TCP connections to
	// maintain (spec.md §4.6's "C persistent TCP connections").
	Connections int

	// MaxRetries bounds how many times a record is re-enqueued after
	// a connection error before its callback receives
	// [rpcwire.ResultTransient].
	MaxRetries uint32

	// DialTimeout bounds each connection attempt.
	DialTimeout time.Duration

	// Backoff is the delay applied between a connection failure and
	// the next reconnect attempt.
	Backoff time.Duration

	Logger *slog.Logger
}

// Client maintains Config.Connections persistent connections to the
// master and dispatches [Record]s to them from a shared queue.
type Client struct {
	conf   Config
	logger *slog.Logger
	in     *queue.Queue[*Record]
	cancel context.CancelFunc

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New constructs and starts a Client. Its connections begin dialing
// immediately; callers enqueue work with [Client.Allocate].
func New(conf Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		conf:   conf,
		logger: conf.Logger,
		in:     queue.New[*Record](conf.Connections * 4),
		cancel: cancel,
		conns:  make(map[net.Conn]struct{}, conf.Connections),
	}

	for i := 0; i < conf.Connections; i++ {
		go c.connectionLoop(ctx, i)
	}

	return c
}

// Allocate enqueues req for allocation on the shared queue, blocking
// while that queue is full (spec.md §4.6's "queue discipline: ...
// the caller blocks").
func (c *Client) Allocate(ctx context.Context, req *rpcwire.ClientRequest, cb Callback) error {
	return c.in.Push(ctx, &Record{Request: req, Callback: cb})
}

// Close stops all connections. A connection goroutine blocked in
// [rpcwire.ReadFrame] or [rpcwire.WriteFrame] never observes ctx
// cancellation on its own, so Close also force-closes every live
// socket, per spec.md §5's "RPC connections close their sockets
// causing the I/O loop to exit." In-flight records are drained with
// [ErrCancelled].
func (c *Client) Close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	for conn := range c.conns {
		_ = conn.Close()
	}
}

// trackConn registers conn as the socket currently owned by a
// connection goroutine, so Close can force it closed.
func (c *Client) trackConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conns[conn] = struct{}{}
}

// untrackConn removes conn once its owning goroutine has closed it.
func (c *Client) untrackConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.conns, conn)
}

// connectionLoop implements one connection's state machine:
// connecting → idle → writing_header → writing_body → reading_header
// → reading_body → idle, per spec.md §4.6.
func (c *Client) connectionLoop(ctx context.Context, idx int) {
	defer slogutil.RecoverAndLog(ctx, c.logger)

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("rpc dial failed", "connection", idx, slogutil.KeyError, err)

			select {
			case <-time.After(c.conf.Backoff):
			case <-ctx.Done():
				return
			}

			continue
		}

		c.serveConnection(ctx, conn, idx)
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.conf.DialTimeout}

	conn, err := d.DialContext(ctx, "tcp", c.conf.Addr)
	if err != nil {
		return nil, fmt.Errorf("dialing master: %w", err)
	}

	return conn, nil
}

// serveConnection pulls one record at a time and round-trips it over
// conn. Pipelining is deliberately not used, per spec.md §4.6, so
// that response correlation needs no request id.
func (c *Client) serveConnection(ctx context.Context, conn net.Conn, idx int) {
	c.trackConn(conn)
	defer c.untrackConn(conn)
	defer func() { _ = conn.Close() }()

	for {
		rec, err := c.in.Pop(ctx)
		if err != nil {
			return
		}

		resp, err := c.roundTrip(conn, rec.Request)
		if err != nil {
			c.logger.Warn("rpc round trip failed", "connection", idx, slogutil.KeyError, err)
			c.retryOrFail(ctx, rec)

			return
		}

		rec.Callback(resp, nil)
	}
}

func (c *Client) roundTrip(conn net.Conn, req *rpcwire.ClientRequest) (resp *rpcwire.ClientResponse, err error) {
	if err = rpcwire.WriteFrame(conn, req.Encode()); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	body, err := rpcwire.ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	resp, err = rpcwire.DecodeClientResponse(body)
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return resp, nil
}

// retryOrFail re-enqueues rec with an incremented retry count, or
// resolves it with a transient result once [Config.MaxRetries] is
// exhausted, per spec.md §4.6 and §7's ALLOC_TRANSIENT handling.
func (c *Client) retryOrFail(ctx context.Context, rec *Record) {
	rec.retryCount++
	rec.Request.RetryCount = rec.retryCount

	if rec.retryCount > c.conf.MaxRetries {
		rec.Callback(&rpcwire.ClientResponse{Result: rpcwire.ResultTransient}, nil)

		return
	}

	if err := c.in.Push(ctx, rec); err != nil {
		rec.Callback(nil, ErrCancelled)
	}
}
