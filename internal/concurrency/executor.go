// File: internal/concurrency/executor.go
// Package concurrency implements the fixed worker pool that processes
// ready connections.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WorkerPool runs a fixed set of goroutines over one bounded blocking
// queue. Submit never blocks: a full queue is reported to the caller.

package concurrency

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/pool"
	"github.com/rs/zerolog"
)

// HandlerFunc processes one task on a worker goroutine.
type HandlerFunc[T any] func(ctx context.Context, task T)

// WorkerPool manages a fixed pool of worker goroutines.
type WorkerPool[T any] struct {
	queue   *pool.BlockingQueue[T]
	handle  HandlerFunc[T]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers int
	closed  atomic.Bool
	log     zerolog.Logger

	// statistics
	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
}

var _ api.Dispatcher[int] = (*WorkerPool[int])(nil)

// NewWorkerPool starts workers goroutines sharing a queue of queueSize
// pending tasks.
func NewWorkerPool[T any](workers, queueSize int, handle func(ctx context.Context, task T), log zerolog.Logger) (*WorkerPool[T], error) {
	if workers <= 0 || queueSize <= 0 {
		return nil, fmt.Errorf("worker pool %d workers, queue %d: %w", workers, queueSize, api.ErrInvalidArgument)
	}
	if handle == nil {
		return nil, fmt.Errorf("worker pool handler: %w", api.ErrInvalidArgument)
	}
	ctx, cancel := context.WithCancel(context.Background())
	wp := &WorkerPool[T]{
		queue:   pool.NewBlockingQueue[T](queueSize),
		handle:  handle,
		ctx:     ctx,
		cancel:  cancel,
		workers: workers,
		log:     log,
	}
	wp.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go wp.run(i)
	}
	return wp, nil
}

// Submit enqueues a task. It returns api.ErrQueueFull when the queue is at
// capacity and api.ErrPoolClosed after Stop.
func (wp *WorkerPool[T]) Submit(task T) error {
	if wp.closed.Load() {
		return api.ErrPoolClosed
	}
	if !wp.queue.Push(task) {
		if wp.queue.Closed() {
			return api.ErrPoolClosed
		}
		wp.rejected.Add(1)
		return api.ErrQueueFull
	}
	wp.submitted.Add(1)
	return nil
}

// NumWorkers returns the number of worker goroutines.
func (wp *WorkerPool[T]) NumWorkers() int {
	return wp.workers
}

// Pending returns the number of queued tasks.
func (wp *WorkerPool[T]) Pending() int {
	return wp.queue.Len()
}

// Stop rejects new tasks, lets workers drain the queue and waits for them.
// Tasks already running are not interrupted.
func (wp *WorkerPool[T]) Stop() {
	if !wp.closed.CompareAndSwap(false, true) {
		return
	}
	wp.queue.Close()
	wp.wg.Wait()
	wp.cancel()
}

// Stats returns basic pool metrics.
func (wp *WorkerPool[T]) Stats() map[string]int64 {
	return map[string]int64{
		"submitted_tasks": wp.submitted.Load(),
		"completed_tasks": wp.completed.Load(),
		"rejected_tasks":  wp.rejected.Load(),
		"panicked_tasks":  wp.panics.Load(),
		"pending_tasks":   int64(wp.queue.Len()),
		"num_workers":     int64(wp.workers),
	}
}

// run is the main loop for a worker.
func (wp *WorkerPool[T]) run(id int) {
	defer wp.wg.Done()
	for {
		task, ok := wp.queue.Pop()
		if !ok {
			return
		}
		wp.execute(id, task)
	}
}

// execute runs the handler, recovering from panics to keep the worker alive.
func (wp *WorkerPool[T]) execute(id int, task T) {
	defer func() {
		if r := recover(); r != nil {
			wp.panics.Add(1)
			wp.log.Error().
				Int("worker", id).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("task panicked")
		}
		wp.completed.Add(1)
	}()
	wp.handle(wp.ctx, task)
}
