package stats

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Reporter samples [Counters] once a second and retains the last
// completed window for the statis_lps admin command, per spec.md §6.
type Reporter struct {
	counters *Counters
	last     atomic.Pointer[Snapshot]
}

// NewReporter constructs a reporter over counters.
func NewReporter(counters *Counters) *Reporter {
	r := &Reporter{counters: counters}
	r.last.Store(&Snapshot{})

	return r
}

// Run samples counters once per second until ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := r.counters.SwapWindow()
			r.last.Store(&snap)
		}
	}
}

// Format returns the last completed window as the space-separated
// "discover offer request ack" string spec.md's statis_lps command
// returns.
func (r *Reporter) Format() string {
	s := r.last.Load()

	return fmt.Sprintf("%d %d %d %d", s.Discover, s.Offer, s.Request, s.Ack)
}
