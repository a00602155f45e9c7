// File: pool/ring.go
// Author: momentics <momentics@gmail.com>
//
// Bounded blocking queue over a circular buffer, shared between producers
// that must never block (the reactor, loggers) and consumers that park
// until work arrives (workers, the log writer).

package pool

import (
	"sync"

	"github.com/eapache/queue"
)

// BlockingQueue is a fixed-capacity FIFO. Push fails fast when full; Pop
// blocks while empty. All methods are safe for concurrent use.
type BlockingQueue[T any] struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	ring     *queue.Queue
	capacity int
	closed   bool
}

// NewBlockingQueue allocates a queue holding at most capacity elements.
func NewBlockingQueue[T any](capacity int) *BlockingQueue[T] {
	if capacity <= 0 {
		panic("blocking queue capacity must be positive")
	}
	q := &BlockingQueue[T]{
		ring:     queue.New(),
		capacity: capacity,
	}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends v at the back. It returns false without blocking if the
// queue is full or closed.
func (q *BlockingQueue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed || q.ring.Length() >= q.capacity {
		q.mu.Unlock()
		return false
	}
	q.ring.Add(v)
	q.mu.Unlock()
	q.nonEmpty.Broadcast()
	return true
}

// Pop removes and returns the front element, blocking while the queue is
// empty. ok is false once the queue has been closed and drained.
func (q *BlockingQueue[T]) Pop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.ring.Length() == 0 {
		if q.closed {
			return v, false
		}
		q.nonEmpty.Wait()
	}
	return q.ring.Remove().(T), true
}

// TryPop is the non-blocking form of Pop.
func (q *BlockingQueue[T]) TryPop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ring.Length() == 0 {
		return v, false
	}
	return q.ring.Remove().(T), true
}

// Front returns the oldest element without removing it.
func (q *BlockingQueue[T]) Front() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ring.Length() == 0 {
		return v, false
	}
	return q.ring.Peek().(T), true
}

// Back returns the newest element without removing it.
func (q *BlockingQueue[T]) Back() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ring.Length() == 0 {
		return v, false
	}
	return q.ring.Get(-1).(T), true
}

// Len returns the number of queued elements.
func (q *BlockingQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Length()
}

// Cap returns the capacity ceiling.
func (q *BlockingQueue[T]) Cap() int {
	return q.capacity
}

// Full reports whether a Push would be rejected for capacity.
func (q *BlockingQueue[T]) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Length() >= q.capacity
}

// Empty reports whether the queue holds no elements.
func (q *BlockingQueue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Length() == 0
}

// Clear drops every queued element.
func (q *BlockingQueue[T]) Clear() {
	q.mu.Lock()
	q.ring = queue.New()
	q.mu.Unlock()
}

// Close rejects further pushes and wakes every blocked Pop. Elements
// already queued can still be popped.
func (q *BlockingQueue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.nonEmpty.Broadcast()
}

// Closed reports whether Close has been called.
func (q *BlockingQueue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
