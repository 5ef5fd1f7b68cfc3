// Package queue implements the bridge's two in-memory FIFO work queues: a
// bounded PrimaryQueue fed by Feeders and an (optionally bounded) RetryQueue
// fed by Workers on transient failure. Both are adapted from the teacher's
// worker.Queue (its Enqueue/Dequeue are Push/Pop here) to a blocking,
// in-process channel implementation instead of an external broker.
package queue

import (
	"context"
	"time"
)

// WorkItem is a single unit of archival work: one document in one resource,
// carrying its retry state.
type WorkItem struct {
	ID           string
	Resource     string
	RetriesCount int
	Timeout      time.Duration
}

// Unbounded marks a queue size option as having no capacity limit.
const Unbounded = -1

// Queue is a FIFO channel-backed work queue. size == Unbounded creates an
// effectively unbounded buffer.
type Queue struct {
	items chan WorkItem
}

// New creates a Queue. A size of Unbounded (or any other size <= 0) backs
// the queue with a 1<<20-item buffer since Go channels require a fixed
// capacity; Push blocks once that many items are queued.
func New(size int) *Queue {
	capacity := size
	if capacity == Unbounded || capacity <= 0 {
		capacity = 1 << 20
	}
	return &Queue{items: make(chan WorkItem, capacity)}
}

// Push enqueues item, blocking only if the queue is at capacity.
func (q *Queue) Push(item WorkItem) {
	q.items <- item
}

// TryPush enqueues item without blocking, reporting false if the queue is
// full.
func (q *Queue) TryPush(item WorkItem) bool {
	select {
	case q.items <- item:
		return true
	default:
		return false
	}
}

// Pop blocks up to timeout for an item. ok is false on timeout or if ctx is
// done first, matching the Worker's S0 "dequeue (blocking with
// queue_timeout); if none, exit loop" contract.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (item WorkItem, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item = <-q.items:
		return item, true
	case <-timer.C:
		return WorkItem{}, false
	case <-ctx.Done():
		return WorkItem{}, false
	}
}

// Len reports the number of items currently queued.
func (q *Queue) Len() int {
	return len(q.items)
}

// Empty reports whether the queue currently holds no items.
func (q *Queue) Empty() bool {
	return len(q.items) == 0
}

// PushAfter schedules item to be pushed onto the queue after delay without
// blocking the caller, the same fire-and-forget timer pattern §4.6's retry
// policy uses to place a retried item back after timeout seconds.
func (q *Queue) PushAfter(item WorkItem, delay time.Duration) {
	if delay <= 0 {
		q.Push(item)
		return
	}
	time.AfterFunc(delay, func() {
		q.Push(item)
	})
}
