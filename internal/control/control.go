// Package control implements the admin/command TCP server described
// in spec.md §4.8: length-prefixed JSON commands dispatched through a
// registry, serialized by a single command mutex.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/AdguardTeam/golibs/logutil/slogutil"

	"github.com/zdnscloud/zdhcp-sub001/internal/rpcwire"
)

// rawRequest is a command frame's body, kept as raw per-field JSON so
// a handler can decode its own command-specific arguments from the
// original body.
type rawRequest map[string]json.RawMessage

// Response is the reply frame, per spec.md §6.
type Response struct {
	Succeed bool `json:"succeed"`

	// Result holds a handler's success payload.
	Result string `json:"result,omitempty"`

	// ErrorInfo holds a handler's failure message.
	ErrorInfo string `json:"error_info,omitempty"`

	// RequestID echoes the request's id, the SPEC_FULL.md expansion
	// over the base wire contract.
	RequestID string `json:"request_id,omitempty"`
}

// Handler executes one named command and returns its result text or
// an error.
type Handler func(ctx context.Context, args json.RawMessage) (result string, err error)

// Server accepts control connections and dispatches commands to
// registered handlers. Sessions run concurrently; command dispatch is
// serialized across them.
type Server struct {
	logger *slog.Logger

	mu       sync.Mutex // serializes command dispatch across sessions
	handlers map[string]Handler

	ln net.Listener

	onStop func()
}

// NewServer constructs a control server bound to addr.
func NewServer(addr string, logger *slog.Logger, onStop func()) (s *Server, err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding control server on %s: %w", addr, err)
	}

	s = &Server{
		logger:   logger,
		handlers: make(map[string]Handler),
		ln:       ln,
		onStop:   onStop,
	}

	return s, nil
}

// Register adds a handler for the named command.
func (s *Server) Register(name string, h Handler) {
	s.handlers[name] = h
}

// Serve accepts connections until ctx is done or the listener closes.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("accepting control connection: %w", err)
		}

		go s.serveSession(ctx, conn)
	}
}

// Addr returns the server's bound address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// serveSession implements the read_header → read_body → dispatch →
// write_header → write_body → read_header loop spec.md §4.8
// describes, for one connection.
func (s *Server) serveSession(ctx context.Context, conn net.Conn) {
	defer slogutil.RecoverAndLog(ctx, s.logger)
	defer func() { _ = conn.Close() }()

	for {
		body, err := rpcwire.ReadFrame(conn)
		if err != nil {
			return
		}

		resp := s.dispatch(ctx, body)

		out, merr := json.Marshal(resp)
		if merr != nil {
			s.logger.Error("marshalling control response", slogutil.KeyError, merr)

			return
		}

		if werr := rpcwire.WriteFrame(conn, out); werr != nil {
			return
		}

		if resp.stop {
			s.shutdownAfterFlush()

			return
		}
	}
}

// dispatchResult augments Response with an internal stop flag, since
// "stop" must reply then shut down only after the reply is flushed.
type dispatchResult struct {
	Response
	stop bool
}

func (s *Server) dispatch(ctx context.Context, body []byte) dispatchResult {
	var raw rawRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		return dispatchResult{Response: Response{Succeed: false, ErrorInfo: fmt.Sprintf("parse error: %v", err)}}
	}

	var name, requestID string
	if n, ok := raw["name"]; ok {
		_ = json.Unmarshal(n, &name)
	}
	if r, ok := raw["request_id"]; ok {
		_ = json.Unmarshal(r, &requestID)
	}

	s.mu.Lock()
	h, ok := s.handlers[name]
	s.mu.Unlock()

	if !ok {
		return dispatchResult{Response: Response{Succeed: false, ErrorInfo: "unknown command: " + name, RequestID: requestID}}
	}

	s.mu.Lock()
	result, err := h(ctx, body)
	s.mu.Unlock()

	if err != nil {
		return dispatchResult{Response: Response{Succeed: false, ErrorInfo: err.Error(), RequestID: requestID}}
	}

	return dispatchResult{Response: Response{Succeed: true, Result: result, RequestID: requestID}, stop: name == "stop"}
}

func (s *Server) shutdownAfterFlush() {
	_ = s.ln.Close()

	if s.onStop != nil {
		s.onStop()
	}
}
