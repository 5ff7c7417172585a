package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AdguardTeam/golibs/logutil/slogutil"

	"github.com/zdnscloud/zdhcp-sub001/internal/iface"
	"github.com/zdnscloud/zdhcp-sub001/internal/queue"
)

// Pool owns the ingress/egress queues, the NIC receiver/sender
// goroutines for every open filter, and the fixed-size worker pool
// that drains ingress between them, per spec.md §4.1's pipeline
// diagram.
type Pool struct {
	deps     Deps
	filters  []iface.Filter
	ingress  *queue.Queue[*iface.Received]
	workers  int
	logger   *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool constructs a pool over the given open filters. workers sets
// the number of worker goroutines draining ingress; deps.Egress must
// already be constructed; the workers push to it and the pool's single
// sender goroutine drains it.
func NewPool(deps Deps, filters []iface.Filter, ingressSize, workers int) *Pool {
	return &Pool{
		deps:    deps,
		filters: filters,
		ingress: queue.New[*iface.Received](ingressSize),
		workers: workers,
		logger:  deps.Logger,
	}
}

// Start launches the receiver goroutine for every filter, the worker
// pool, and the sender goroutine that drains egress back out the
// originating interface. It returns immediately; call Stop to shut
// down.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for _, f := range p.filters {
		p.wg.Add(1)
		go p.receiveLoop(ctx, f)
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()

			NewWorker(p.deps).Run(ctx, p.ingress)
		}()
	}

	p.wg.Add(1)
	go p.sendLoop(ctx)
}

// Stop cancels every goroutine Start launched and blocks until they
// have exited.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}

	p.wg.Wait()

	for _, f := range p.filters {
		f.Close()
	}
}

// receiveLoop reads datagrams off one filter and pushes them to
// ingress until ctx is done, per spec.md §4.1's "receiver thread per
// interface".
func (p *Pool) receiveLoop(ctx context.Context, f iface.Filter) {
	defer p.wg.Done()
	defer slogutil.RecoverAndLog(ctx, p.logger)

	for {
		rcv, err := f.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			p.logger.Error("receive failed", slogutil.KeyError, err)

			continue
		}

		if pushErr := p.ingress.Push(ctx, rcv); pushErr != nil {
			return
		}
	}
}

// sendLoop drains egress and transmits each response out the
// interface it arrived on, per spec.md §4.1's "sender thread".
func (p *Pool) sendLoop(ctx context.Context) {
	defer p.wg.Done()
	defer slogutil.RecoverAndLog(ctx, p.logger)

	for {
		out, err := p.deps.Egress.Pop(ctx)
		if err != nil {
			return
		}

		filter := filterFor(p.filters, out.Iface)
		if filter == nil {
			continue
		}

		if sendErr := filter.Send(out.Packet, out.Dst, out.DstPort); sendErr != nil {
			p.logger.Error("send failed", slogutil.KeyError, sendErr, "iface", out.Iface.Name)
		}
	}
}

func filterFor(filters []iface.Filter, i *iface.Interface) iface.Filter {
	for _, f := range filters {
		if f.Interface() == i {
			return f
		}
	}

	return nil
}
