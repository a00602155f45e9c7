// File: pool/resource.go
// Author: momentics <momentics@gmail.com>
//
// Semaphore-gated pool of reusable backend handles. The semaphore accounts
// for use-rights; the mutex only guards the free list.

package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sync/semaphore"
)

// liveness is implemented by handles that can report a broken backend.
type liveness interface {
	Alive() bool
}

// ResourcePool hands out at most Size() handles at a time.
type ResourcePool[T any] struct {
	mu      sync.Mutex
	free    []T
	sem     *semaphore.Weighted
	size    int
	inUse   atomic.Int64
	closed  atomic.Bool
	open    func() (T, error)
	closeFn func(T) error
}

var _ api.Checkout[int] = (*ResourcePool[int])(nil)

// NewResourcePool opens size handles up front. If any open fails, the
// handles opened so far are closed and the error is returned.
func NewResourcePool[T any](size int, open func() (T, error), closeFn func(T) error) (*ResourcePool[T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("resource pool size %d: %w", size, api.ErrInvalidArgument)
	}
	if open == nil {
		return nil, fmt.Errorf("resource pool opener: %w", api.ErrInvalidArgument)
	}
	if closeFn == nil {
		closeFn = func(T) error { return nil }
	}
	p := &ResourcePool[T]{
		free:    make([]T, 0, size),
		sem:     semaphore.NewWeighted(int64(size)),
		size:    size,
		open:    open,
		closeFn: closeFn,
	}
	for i := 0; i < size; i++ {
		res, err := open()
		if err != nil {
			for _, r := range p.free {
				_ = closeFn(r)
			}
			return nil, fmt.Errorf("open pooled resource %d/%d: %w", i+1, size, err)
		}
		p.free = append(p.free, res)
	}
	return p, nil
}

// Checkout blocks until a handle is free or ctx is done.
func (p *ResourcePool[T]) Checkout(ctx context.Context) (T, error) {
	var zero T
	if p.closed.Load() {
		return zero, api.ErrPoolClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	if p.closed.Load() {
		p.sem.Release(1)
		return zero, api.ErrPoolClosed
	}
	p.mu.Lock()
	res := p.free[0]
	p.free[0] = zero
	p.free = p.free[1:]
	p.mu.Unlock()
	p.inUse.Add(1)
	return res, nil
}

// Checkin returns a handle obtained from Checkout. A handle reporting
// Alive() == false is replaced by a freshly opened one when possible.
func (p *ResourcePool[T]) Checkin(res T) {
	if lv, ok := any(res).(liveness); ok && !lv.Alive() {
		if fresh, err := p.open(); err == nil {
			_ = p.closeFn(res)
			res = fresh
		}
	}
	p.mu.Lock()
	p.free = append(p.free, res)
	p.mu.Unlock()
	p.inUse.Add(-1)
	p.sem.Release(1)
}

// With checks out a handle, runs fn and checks the handle back in on every
// exit path, including a panic inside fn.
func (p *ResourcePool[T]) With(ctx context.Context, fn func(res T) error) error {
	res, err := p.Checkout(ctx)
	if err != nil {
		return err
	}
	defer p.Checkin(res)
	return fn(res)
}

// Size returns the total number of handles.
func (p *ResourcePool[T]) Size() int {
	return p.size
}

// Free returns the number of idle handles.
func (p *ResourcePool[T]) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// InUse returns the number of outstanding checkouts.
func (p *ResourcePool[T]) InUse() int {
	return int(p.inUse.Load())
}

// Close waits for every handle to be checked in (or ctx to end), then
// closes them all. New checkouts fail with ErrPoolClosed.
func (p *ResourcePool[T]) Close(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := p.sem.Acquire(ctx, int64(p.size)); err != nil {
		return fmt.Errorf("drain resource pool: %w", err)
	}
	p.mu.Lock()
	free := p.free
	p.free = nil
	p.mu.Unlock()
	var errs []error
	for _, res := range free {
		if err := p.closeFn(res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
