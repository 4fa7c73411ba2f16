package router

import (
	"sync"
)

// Queue is an unbounded FIFO handoff between the router and its consumers.
// It grows instead of blocking producers: the WebSocket read loop must never
// stall behind a slow database flush.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	tail   int
	count  int
	closed bool

	pushed int64
	popped int64
}

// NewQueue creates a queue with the given initial capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue[T]{items: make([]T, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item, doubling the backing slice when full.
// Returns false once the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.count == len(q.items) {
		q.grow()
	}

	q.items[q.tail] = item
	q.tail = (q.tail + 1) % len(q.items)
	q.count++
	q.pushed++

	q.cond.Signal()
	return true
}

// Pop blocks until an item is available or the queue is closed and drained.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.pop(), true
}

// TryPop returns an item without blocking, if one is queued.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.pop(), true
}

// Drain removes up to max queued items (all of them when max <= 0).
func (q *Queue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	for i := range out {
		out[i] = q.pop()
	}
	return out
}

// Close stops accepting pushes. Consumers drain the remainder, then Pop
// reports closed.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns a snapshot of queue counters.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Depth:    q.count,
		Capacity: len(q.items),
		Pushed:   q.pushed,
		Popped:   q.popped,
	}
}

// QueueStats is a point-in-time snapshot of a queue's counters.
type QueueStats struct {
	Depth    int
	Capacity int
	Pushed   int64
	Popped   int64
}

// pop removes the head item. Caller holds q.mu and has checked count > 0.
func (q *Queue[T]) pop() T {
	item := q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.count--
	q.popped++
	return item
}

// grow doubles capacity, unwrapping the ring. Caller holds q.mu.
func (q *Queue[T]) grow() {
	next := make([]T, len(q.items)*2)
	if q.head < q.tail || q.count == 0 {
		copy(next, q.items[q.head:q.head+q.count])
	} else {
		n := copy(next, q.items[q.head:])
		copy(next[n:], q.items[:q.tail])
	}
	q.items = next
	q.head = 0
	q.tail = q.count
}
