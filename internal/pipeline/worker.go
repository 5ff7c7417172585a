// Package pipeline implements the packet intake/dispatch pipeline
// described in spec.md §4.3: classification, subnet selection, and
// per-message-type dispatch through the allocation engine and ping
// probe.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/golibs/logutil/slogutil"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/classify"
	"github.com/zdnscloud/zdhcp-sub001/internal/clientctx"
	"github.com/zdnscloud/zdhcp-sub001/internal/hooks"
	"github.com/zdnscloud/zdhcp-sub001/internal/iface"
	"github.com/zdnscloud/zdhcp-sub001/internal/option4"
	"github.com/zdnscloud/zdhcp-sub001/internal/packet4"
	"github.com/zdnscloud/zdhcp-sub001/internal/ping"
	"github.com/zdnscloud/zdhcp-sub001/internal/queue"
	"github.com/zdnscloud/zdhcp-sub001/internal/rpcclient"
	"github.com/zdnscloud/zdhcp-sub001/internal/rpcwire"
	"github.com/zdnscloud/zdhcp-sub001/internal/stats"
	"github.com/zdnscloud/zdhcp-sub001/internal/subnet"
)

// Outbound is one response queued for the NIC sender thread.
type Outbound struct {
	Packet  *packet4.Packet
	Iface   *iface.Interface
	Dst     addr4.Address
	DstPort uint16
}

// Deps bundles a Worker's collaborators.
type Deps struct {
	Classes  []*classify.Class
	Subnets  *subnet.Manager
	RPC      *rpcclient.Client
	Ping     *ping.Engine // nil if ping is disabled by configuration
	Hooks    *hooks.Registry
	Counters *stats.Counters
	LeaseLog *stats.FileWriter // nil disables per-lease logging
	Egress   *queue.Queue[*Outbound]
	Logger   *slog.Logger

	// MaxAllocRetries bounds ALLOC_CONFLICT retries, per spec.md §7's
	// "request a retry with the same context up to R times".
	MaxAllocRetries uint32
}

// Worker dequeues packets from the ingress queue and drives them
// through classification, subnet selection, and dispatch.
type Worker struct {
	deps Deps
}

// NewWorker constructs a worker over deps.
func NewWorker(deps Deps) *Worker {
	return &Worker{deps: deps}
}

// Run dequeues from ingress until ctx is done.
func (w *Worker) Run(ctx context.Context, ingress *queue.Queue[*iface.Received]) {
	defer slogutil.RecoverAndLog(ctx, w.deps.Logger)

	for {
		rcv, err := ingress.Pop(ctx)
		if err != nil {
			return
		}

		w.handle(ctx, rcv)
	}
}

// handle processes one received packet to completion or to the point
// where it hands off to an asynchronous RPC/ping callback chain.
func (w *Worker) handle(ctx context.Context, rcv *iface.Received) {
	handle := hooks.NewCalloutHandle()
	handle.Args["packet"] = rcv.Packet

	if w.deps.Hooks != nil {
		if err := w.deps.Hooks.Run("pkt4_receive", handle); err != nil {
			w.deps.Logger.Error("pkt4_receive hook failed", slogutil.KeyError, err)

			return
		}

		if handle.NextStep() == hooks.StepDrop {
			return
		}
	}

	msgType, err := rcv.Packet.Type()
	if err != nil {
		// PARSE_ERROR: drop, per spec.md §7.
		return
	}

	matched := classify.Evaluate(w.deps.Classes, rcv.Packet)

	sel, err := w.deps.Subnets.Select(subnet.Query{
		GIAddr:             rcv.Packet.GIAddr,
		IngressPrimaryAddr: rcv.Iface.PrimaryV4,
		LinkSelection:      linkSelectionAddr(rcv.Packet),
		MatchedClasses:     matched,
	})
	if err != nil {
		w.onNoSubnet(ctx, rcv, msgType)

		return
	}

	cctx := &clientctx.Context{
		Received:       rcv,
		Subnet:         sel,
		MatchedClasses: matched,
		ServerID:       serverIdentifierFor(rcv, sel),
	}

	switch msgType {
	case packet4.MsgDiscover, packet4.MsgRequest:
		if msgType == packet4.MsgRequest {
			w.deps.Counters.IncRequest()
		} else {
			w.deps.Counters.IncDiscover()
		}
		w.dispatchAllocate(ctx, cctx, msgType)
	case packet4.MsgRelease, packet4.MsgDecline:
		w.notifyMasterOnly(cctx, msgType)
	case packet4.MsgInform:
		w.enqueueResponse(ctx, cctx, buildInformAck(cctx))
	default:
		// OFFER, ACK, and NAK never arrive as queries; anything else
		// is silently dropped.
	}
}

// onNoSubnet implements spec.md §7's NO_SUBNET/CLASS_DENIED handling:
// NAK on REQUEST, otherwise a silent drop.
func (w *Worker) onNoSubnet(ctx context.Context, rcv *iface.Received, msgType packet4.MsgType) {
	if msgType != packet4.MsgRequest {
		return
	}

	cctx := &clientctx.Context{Received: rcv}
	w.enqueueResponse(ctx, cctx, buildNak(cctx))
}

// dispatchAllocate invokes the hook chain, then the RPC allocation
// engine, continuing asynchronously through the ping probe, per
// spec.md §4.3.
func (w *Worker) dispatchAllocate(ctx context.Context, c *clientctx.Context, msgType packet4.MsgType) {
	req := &rpcwire.ClientRequest{
		MsgType:        rpcwire.MsgType(msgType),
		SubnetID:       c.Subnet.ID,
		SharedSubnetID: c.Subnet.SharedNetworkID,
		ClientID:       c.Received.Packet.ClientID(),
		HWAddr:         []byte(c.Received.Packet.HardwareAddr()),
		RequestedAddr:  requestedAddress(c.Received.Packet),
		RetryCount:     c.RetryCount,
	}

	err := w.deps.RPC.Allocate(ctx, req, func(resp *rpcwire.ClientResponse, rpcErr error) {
		w.onAllocateResult(ctx, c, msgType, resp, rpcErr)
	})
	if err != nil {
		// Queue push failed only if ctx is already done; nothing more
		// to do.
		return
	}
}

// onAllocateResult runs on the RPC connection goroutine and continues
// the query either to the ping probe or directly to response
// assembly.
func (w *Worker) onAllocateResult(ctx context.Context, c *clientctx.Context, msgType packet4.MsgType, resp *rpcwire.ClientResponse, rpcErr error) {
	if rpcErr != nil || resp.Result == rpcwire.ResultTransient {
		w.finishTransient(ctx, c, msgType)

		return
	}

	switch resp.Result {
	case rpcwire.ResultNoAddress, rpcwire.ResultNotOnLink:
		w.finishNoAddress(ctx, c, msgType)

		return
	case rpcwire.ResultConflict:
		w.retryAllocation(ctx, c, msgType)

		return
	}

	c.CandidateAddr = addr4.Address(resp.YIAddr)
	c.ValidLifetime, c.T1, c.T2 = resp.ValidLifetime, resp.T1, resp.T2

	if c.ValidLifetime == 0 {
		// The master left lease timing to the subnet's own
		// configuration.
		c.ValidLifetime, c.T1, c.T2 = leaseTimers(c)
	}

	if w.deps.Ping == nil {
		w.finishOK(ctx, c, msgType)

		return
	}

	pErr := w.deps.Ping.Probe(ctx, c.CandidateAddr, func(conflict bool) {
		if conflict {
			w.onPingConflict(ctx, c, msgType)

			return
		}

		w.finishOK(ctx, c, msgType)
	})
	if pErr != nil {
		// Queue-full is non-fatal per spec.md §4.7: proceed as if no
		// conflict was detected.
		w.finishOK(ctx, c, msgType)
	}
}

// onPingConflict implements ALLOC_CONFLICT from spec.md §7: notify
// the master and retry up to MaxAllocRetries times, then NAK.
func (w *Worker) onPingConflict(ctx context.Context, c *clientctx.Context, msgType packet4.MsgType) {
	w.notifyConflict(c)

	if c.RetryCount >= w.deps.MaxAllocRetries {
		w.enqueueResponse(ctx, c, buildNak(c))

		return
	}

	w.retryAllocation(ctx, c, msgType)
}

func (w *Worker) retryAllocation(ctx context.Context, c *clientctx.Context, msgType packet4.MsgType) {
	c.RetryCount++
	w.dispatchAllocate(ctx, c, msgType)
}

// finishOK assembles and enqueues the successful OFFER/ACK.
func (w *Worker) finishOK(ctx context.Context, c *clientctx.Context, msgType packet4.MsgType) {
	var resp *packet4.Packet
	if msgType == packet4.MsgDiscover {
		resp = buildOffer(c, uint32(c.CandidateAddr))
		w.deps.Counters.IncOffer()
	} else {
		resp = buildAck(c, uint32(c.CandidateAddr))
		w.deps.Counters.IncAck()
		c.Subnet.SetLastAllocated(c.CandidateAddr)
	}

	w.enqueueResponse(ctx, c, resp)

	if msgType != packet4.MsgDiscover {
		w.logLease(c)
	}
}

// logLease appends a per-lease record, per spec.md §6's lease file
// format, if a writer is configured.
func (w *Worker) logLease(c *clientctx.Context) {
	if w.deps.LeaseLog == nil {
		return
	}

	pkt := c.Received.Packet

	var prl []byte
	if opt, ok := pkt.Options.GetFirst(option4.CodeParameterRequestList); ok {
		prl = opt.Raw
	}

	var vendorClass string
	if opt, ok := pkt.Options.GetFirst(option4.CodeVendorClassID); ok {
		vendorClass = string(opt.Raw)
	}

	if err := w.deps.LeaseLog.WriteLease(pkt.HardwareAddr().String(), prl, vendorClass); err != nil {
		w.deps.Logger.Error("writing lease log", slogutil.KeyError, err)
	}
}

// finishNoAddress implements ALLOC_NO_ADDRESS: NAK on REQUEST, drop
// on DISCOVER.
func (w *Worker) finishNoAddress(ctx context.Context, c *clientctx.Context, msgType packet4.MsgType) {
	if msgType == packet4.MsgRequest {
		w.enqueueResponse(ctx, c, buildNak(c))
	}
}

// finishTransient implements ALLOC_TRANSIENT: drop on DISCOVER, NAK
// on REQUEST so the client retries quickly.
func (w *Worker) finishTransient(ctx context.Context, c *clientctx.Context, msgType packet4.MsgType) {
	if msgType == packet4.MsgRequest {
		w.enqueueResponse(ctx, c, buildNak(c))
	}
}

// notifyMasterOnly handles RELEASE/DECLINE: forward a notification,
// no response is sent to the client.
func (w *Worker) notifyMasterOnly(c *clientctx.Context, msgType packet4.MsgType) {
	req := &rpcwire.ClientRequest{
		MsgType:  rpcwire.MsgType(msgType),
		SubnetID: c.Subnet.ID,
		ClientID: c.Received.Packet.ClientID(),
		HWAddr:   []byte(c.Received.Packet.HardwareAddr()),
	}

	_ = w.deps.RPC.Allocate(context.Background(), req, func(*rpcwire.ClientResponse, error) {})
}

// notifyConflict forwards a conflict notification with the current
// retry_count, per spec.md §4.6.
func (w *Worker) notifyConflict(c *clientctx.Context) {
	req := &rpcwire.ClientRequest{
		MsgType:       rpcwire.MsgTypeRequest,
		SubnetID:      c.Subnet.ID,
		RequestedAddr: c.CandidateAddr,
		RetryCount:    c.RetryCount,
	}

	_ = w.deps.RPC.Allocate(context.Background(), req, func(*rpcwire.ClientResponse, error) {})
}

// enqueueResponse applies pkt4_send and pushes resp to the egress
// queue, computing its destination per spec.md §4.2. Per spec.md
// §4.3's overload semantics, the push blocks until space is
// available rather than dropping the response; it only gives up if
// ctx ends first.
func (w *Worker) enqueueResponse(ctx context.Context, c *clientctx.Context, resp *packet4.Packet) {
	if w.deps.Hooks != nil {
		handle := hooks.NewCalloutHandle()
		handle.Args["packet"] = resp

		if err := w.deps.Hooks.Run("pkt4_send", handle); err != nil {
			w.deps.Logger.Error("pkt4_send hook failed", slogutil.KeyError, err)

			return
		}

		if handle.NextStep() == hooks.StepDrop {
			return
		}
	}

	dst := destinationFor(resp)

	out := &Outbound{Packet: resp, Iface: c.Received.Iface, Dst: dst, DstPort: iface.ClientPort}

	if err := w.deps.Egress.Push(ctx, out); err != nil {
		w.deps.Logger.Debug("egress push abandoned", slogutil.KeyError, err)
	}
}

// destinationFor mirrors the rule internal/iface applies on send:
// broadcast-flagged or ciaddr==0 responses go to the broadcast
// address, otherwise to giaddr or yiaddr.
func destinationFor(resp *packet4.Packet) addr4.Address {
	if resp.IsBroadcast() {
		return addr4.Broadcast
	}

	if !resp.GIAddr.IsZero() {
		return resp.GIAddr
	}

	return resp.YIAddr
}

func linkSelectionAddr(pkt *packet4.Packet) addr4.Address {
	if opt, ok := pkt.Options.GetFirst(118); ok && len(opt.Addrs) > 0 {
		return opt.Addrs[0]
	}

	return addr4.Zero
}

func requestedAddress(pkt *packet4.Packet) addr4.Address {
	a, _ := pkt.RequestedAddress()

	return a
}

func serverIdentifierFor(rcv *iface.Received, sel *subnet.Subnet) addr4.Address {
	if sel != nil && !sel.RelayAddr.IsZero() {
		return sel.RelayAddr
	}

	return rcv.Iface.PrimaryV4
}
