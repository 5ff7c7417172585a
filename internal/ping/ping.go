// Package ping implements the ICMP conflict-detection probe engine
// described in spec.md §4.7: a single raw socket shared by every
// worker, correlating replies to in-flight probes by a 32-bit request
// id and bounding wait time with a FIFO timer queue.
package ping

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
)

// Callback is invoked exactly once per probe with conflict=true if a
// matching Echo Reply arrived before the timeout.
type Callback func(conflict bool)

// ErrQueueFull is returned by [Engine.Probe] when the timer queue has
// reached its configured capacity. Per spec.md §4.7 this is
// non-fatal: callers proceed as if no conflict were detected, since
// the master authoritatively owns the address regardless.
const ErrQueueFull errors.Error = "ping timer queue full"

// Config configures an [Engine].
type Config struct {
	// Timeout is T, the time to wait for a matching Echo Reply.
	Timeout time.Duration

	// QueueSize is Q, the timer queue's capacity.
	QueueSize int

	Logger *slog.Logger
}

// pending is one in-flight probe's bookkeeping.
type pending struct {
	cb       Callback
	deadline time.Time
	fired    atomic.Bool
}

// Engine is the shared ICMP probe engine. One Engine serves every
// worker in the process.
type Engine struct {
	conf Config

	conn *icmp.PacketConn

	sequence atomic.Uint32 // low 16 bits used as the probe sequence

	mu      sync.Mutex
	pending map[uint32]*pending

	timerCh chan *timerEntry

	cancel context.CancelFunc
}

type timerEntry struct {
	id       uint32
	deadline time.Time
}

// New opens the engine's raw ICMP socket and starts its receive and
// timer goroutines.
func New(conf Config) (e *Engine, err error) {
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("opening icmp socket: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	e = &Engine{
		conf:    conf,
		conn:    conn,
		pending: make(map[uint32]*pending),
		timerCh: make(chan *timerEntry, conf.QueueSize),
		cancel:  cancel,
	}

	go e.receiveLoop(ctx)
	go e.timerLoop(ctx)

	return e, nil
}

// Close shuts down the engine and closes its socket.
func (e *Engine) Close() {
	e.cancel()
	_ = e.conn.Close()
}

// Probe sends one ICMP Echo Request to addr and invokes cb with
// conflict=true if a reply matching the probe's id arrives within
// Config.Timeout, or conflict=false on timeout.
func (e *Engine) Probe(ctx context.Context, addr addr4.Address, cb Callback) error {
	seq := uint16(e.sequence.Add(1))
	random := uint16(randomSource.Uint32())
	id := (uint32(random) << 16) | uint32(seq)

	p := &pending{cb: cb, deadline: time.Now().Add(e.conf.Timeout)}

	e.mu.Lock()
	e.pending[id] = p
	e.mu.Unlock()

	msg := &icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   int(uint16(id >> 16)),
			Seq:  int(seq),
			Data: encodeProbeID(id),
		},
	}

	wire, err := msg.Marshal(nil)
	if err != nil {
		e.removePending(id)

		return fmt.Errorf("marshalling echo request: %w", err)
	}

	dst := net.IPAddr{IP: addr.Netip().AsSlice()}

	if _, err = e.conn.WriteTo(wire, &dst); err != nil {
		e.removePending(id)

		return fmt.Errorf("sending echo request to %s: %w", addr, err)
	}

	select {
	case e.timerCh <- &timerEntry{id: id, deadline: p.deadline}:
		return nil
	default:
		e.removePending(id)

		return ErrQueueFull
	}
}

func (e *Engine) removePending(id uint32) {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()
}

// receiveLoop reads Echo Replies and fires the matching pending
// probe's callback with conflict=true.
func (e *Engine) receiveLoop(ctx context.Context) {
	defer slogutil.RecoverAndLog(ctx, e.conf.Logger)

	buf := make([]byte, 1500)

	for {
		if ctx.Err() != nil {
			return
		}

		_ = e.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))

		n, _, err := e.conn.ReadFrom(buf)
		if err != nil {
			continue
		}

		msg, perr := icmp.ParseMessage(1, buf[:n]) // protocol 1 == ICMP
		if perr != nil || msg.Type != ipv4.ICMPTypeEchoReply {
			continue
		}

		echo, ok := msg.Body.(*icmp.Echo)
		if !ok {
			continue
		}

		id, ok := decodeProbeID(echo.Data)
		if !ok {
			continue
		}

		e.mu.Lock()
		p, found := e.pending[id]
		if found {
			delete(e.pending, id)
		}
		e.mu.Unlock()

		if found && p.fired.CompareAndSwap(false, true) {
			p.cb(true)
		}
	}
}

// timerLoop is the bounded FIFO timer queue described in spec.md
// §4.7: since every entry shares the same timeout, arrival order is
// already deadline order, so a single channel read in order suffices
// in place of a priority queue.
func (e *Engine) timerLoop(ctx context.Context) {
	defer slogutil.RecoverAndLog(ctx, e.conf.Logger)

	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-e.timerCh:
			wait := time.Until(entry.deadline)
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return
				}
			}

			e.expire(entry.id)
		}
	}
}

func (e *Engine) expire(id uint32) {
	e.mu.Lock()
	p, found := e.pending[id]
	if found {
		delete(e.pending, id)
	}
	e.mu.Unlock()

	if found && p.fired.CompareAndSwap(false, true) {
		p.cb(false)
	}
}

// encodeProbeID stores id in the Echo payload so it survives the
// round trip even though most kernels also echo the ID/Seq fields
// back verbatim.
func encodeProbeID(id uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, id)

	return b
}

func decodeProbeID(data []byte) (id uint32, ok bool) {
	if len(data) < 4 {
		return 0, false
	}

	return binary.BigEndian.Uint32(data[:4]), true
}

var randomSource = rand.New(rand.NewSource(time.Now().UnixNano()))
