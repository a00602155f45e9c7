// Package api
// Author: momentics
//
// Dispatcher contract for handing ready connections to worker goroutines.

package api

// Dispatcher abstracts a bounded task hand-off to a fixed worker set.
type Dispatcher[T any] interface {
	// Submit enqueues task. It never blocks: a full queue yields
	// ErrQueueFull and a stopped dispatcher yields ErrPoolClosed.
	Submit(task T) error

	// NumWorkers returns the number of worker goroutines.
	NumWorkers() int
}
