package syncq

import "sync"

// Queue is an unbounded blocking FIFO. The zero value is not usable; create
// queues with [New] or [Pool.Acquire].
type Queue[T any] struct {
	mu    sync.Mutex
	cond  sync.Cond
	items []T
	head  int // index of the oldest message in items
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond.L = &q.mu
	return q
}

// Put appends v and wakes a reader blocked in [Queue.Get].
func (q *Queue[T]) Put(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.cond.Signal()
}

// Get blocks until the queue is non-empty, then removes and returns the
// oldest message.
func (q *Queue[T]) Get() T {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) {
		q.cond.Wait()
	}
	return q.pop()
}

// Grab removes and returns the oldest message if there is one. It reports
// false, without blocking, when the queue is empty.
func (q *Queue[T]) Grab() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.items) {
		var zero T
		return zero, false
	}
	return q.pop(), true
}

// Len returns the number of queued messages.
// The value may be stale in concurrent contexts.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items) - q.head
}

// pop must be called with mu held and the queue non-empty.
func (q *Queue[T]) pop() T {
	var zero T
	v := q.items[q.head]
	q.items[q.head] = zero // release the reference for the GC
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head > 32 && q.head*2 > len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v
}
