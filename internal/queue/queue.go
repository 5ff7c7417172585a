// Package queue implements a bounded, multi-producer multi-consumer
// queue used to hand packets between the pipeline's I/O goroutines and
// its worker pool.
package queue

import "context"

// Queue is a bounded FIFO queue safe for concurrent use by multiple
// producers and consumers. It is implemented directly as a buffered
// channel, the idiomatic Go substitute for the explicit mutex/condvar
// MPMC queue spec.md §4.3 describes: a channel's internal ring buffer
// already provides the same bounded-capacity, block-on-full,
// block-on-empty semantics.
type Queue[T any] struct {
	ch chan T
}

// New creates a queue with the given capacity. A zero capacity makes
// every Push block until a matching Pop is ready to receive.
func New[T any](capacity int) *Queue[T] {
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Push enqueues v, blocking if the queue is full until space is
// available or ctx is done.
func (q *Queue[T]) Push(ctx context.Context, v T) error {
	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues v without blocking. It reports whether v was
// enqueued; a false return means the queue was full.
func (q *Queue[T]) TryPush(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// Pop dequeues a value, blocking until one is available or ctx is
// done.
func (q *Queue[T]) Pop(ctx context.Context) (v T, err error) {
	select {
	case v = <-q.ch:
		return v, nil
	case <-ctx.Done():
		return v, ctx.Err()
	}
}

// Len returns the number of values currently queued.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the queue's configured capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

// Close closes the underlying channel. Callers must ensure no further
// Push calls occur after Close; every Pop on a closed, empty queue
// returns the zero value and a nil error, per the channel's own close
// semantics, so consumers should range over Chan() directly when they
// need to observe closure.
func (q *Queue[T]) Close() {
	close(q.ch)
}

// Chan exposes the underlying channel for use in a select statement
// alongside other event sources.
func (q *Queue[T]) Chan() <-chan T {
	return q.ch
}
