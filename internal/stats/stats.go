// Package stats implements the atomic per-second message counters and
// the rotating append-only lease statistics file described in
// spec.md §5 and §6.
package stats

import "sync/atomic"

// Counters holds the atomic per-message-type counts spec.md's
// statis_lps admin command reports.
type Counters struct {
	discover atomic.Uint64
	offer    atomic.Uint64
	request  atomic.Uint64
	ack      atomic.Uint64
}

// IncDiscover, IncOffer, IncRequest, and IncAck record one message of
// the corresponding type.
func (c *Counters) IncDiscover() { c.discover.Add(1) }
func (c *Counters) IncOffer()    { c.offer.Add(1) }
func (c *Counters) IncRequest()  { c.request.Add(1) }
func (c *Counters) IncAck()      { c.ack.Add(1) }

// Snapshot is the last completed one-second window's counts.
type Snapshot struct {
	Discover, Offer, Request, Ack uint64
}

// SwapWindow atomically reads and resets all four counters, returning
// the window that just elapsed. A scheduler calls this once per
// second; statis_lps reports the most recent result.
func (c *Counters) SwapWindow() Snapshot {
	return Snapshot{
		Discover: c.discover.Swap(0),
		Offer:    c.offer.Swap(0),
		Request:  c.request.Swap(0),
		Ack:      c.ack.Swap(0),
	}
}
