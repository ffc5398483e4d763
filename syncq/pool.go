package syncq

// Pool is a cache of idle, empty queues. It is itself backed by a [Queue]
// holding the idle queues, so it is safe for concurrent use.
type Pool[T any] struct {
	idle *Queue[*Queue[T]]
}

// NewPool returns an empty pool.
func NewPool[T any]() *Pool[T] {
	return &Pool[T]{idle: New[*Queue[T]]()}
}

// Acquire returns an idle queue from the pool, or a freshly allocated one if
// the pool is empty.
func (p *Pool[T]) Acquire() *Queue[T] {
	if q, ok := p.idle.Grab(); ok {
		return q
	}
	return New[T]()
}

// Release returns q to the pool.
// Panics if q still holds messages.
func (p *Pool[T]) Release(q *Queue[T]) {
	if q == nil {
		panic("syncq: released nil queue")
	}
	if q.Len() != 0 {
		panic("syncq: released non-empty queue")
	}
	p.idle.Put(q)
}

// Idle returns the number of cached queues.
func (p *Pool[T]) Idle() int {
	return p.idle.Len()
}
