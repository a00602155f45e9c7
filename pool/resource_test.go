// File: pool/resource_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handle struct {
	id     int
	alive  atomic.Bool
	closed atomic.Bool
	holder atomic.Int32
}

func (h *handle) Alive() bool { return h.alive.Load() }

func newHandlePool(t *testing.T, size int) (*pool.ResourcePool[*handle], *atomic.Int32) {
	t.Helper()
	var opened atomic.Int32
	p, err := pool.NewResourcePool(size, func() (*handle, error) {
		h := &handle{id: int(opened.Add(1))}
		h.alive.Store(true)
		return h, nil
	}, func(h *handle) error {
		h.closed.Store(true)
		return nil
	})
	require.NoError(t, err)
	return p, &opened
}

func TestResourcePool_InvariantAcrossCheckouts(t *testing.T) {
	p, _ := newHandlePool(t, 3)
	ctx := context.Background()

	assert.Equal(t, 3, p.Free())
	var held []*handle
	for i := 0; i < 3; i++ {
		h, err := p.Checkout(ctx)
		require.NoError(t, err)
		held = append(held, h)
		assert.Equal(t, p.Size(), p.InUse()+p.Free())
	}
	assert.Equal(t, 0, p.Free())

	for _, h := range held {
		p.Checkin(h)
		assert.Equal(t, p.Size(), p.InUse()+p.Free())
	}
	assert.Equal(t, 3, p.Free())
}

func TestResourcePool_CheckoutBlocksWhenExhausted(t *testing.T) {
	p, _ := newHandlePool(t, 1)
	h, err := p.Checkout(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Checkout(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan *handle, 1)
	go func() {
		h2, err := p.Checkout(context.Background())
		if err == nil {
			got <- h2
		}
	}()
	p.Checkin(h)
	select {
	case h2 := <-got:
		assert.Same(t, h, h2)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by checkin")
	}
}

func TestResourcePool_NoSharedHolders(t *testing.T) {
	p, _ := newHandlePool(t, 4)
	var wg sync.WaitGroup
	var violations atomic.Int32
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = p.With(context.Background(), func(h *handle) error {
					if h.holder.Add(1) != 1 {
						violations.Add(1)
					}
					h.holder.Add(-1)
					return nil
				})
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, violations.Load())
	assert.Equal(t, 4, p.Free())
	assert.Zero(t, p.InUse())
}

func TestResourcePool_WithReleasesOnErrorAndPanic(t *testing.T) {
	p, _ := newHandlePool(t, 1)
	boom := errors.New("boom")

	err := p.With(context.Background(), func(*handle) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, p.Free())

	func() {
		defer func() { _ = recover() }()
		_ = p.With(context.Background(), func(*handle) error { panic("resolver blew up") })
	}()
	assert.Equal(t, 1, p.Free())
}

func TestResourcePool_ReplacesDeadHandles(t *testing.T) {
	p, opened := newHandlePool(t, 1)
	h, err := p.Checkout(context.Background())
	require.NoError(t, err)
	h.alive.Store(false)
	p.Checkin(h)

	assert.True(t, h.closed.Load())
	assert.Equal(t, int32(2), opened.Load())

	h2, err := p.Checkout(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, h, h2)
	assert.True(t, h2.Alive())
}

func TestResourcePool_OpenFailureClosesOpened(t *testing.T) {
	var closed atomic.Int32
	n := 0
	_, err := pool.NewResourcePool(3, func() (int, error) {
		n++
		if n == 3 {
			return 0, errors.New("backend down")
		}
		return n, nil
	}, func(int) error {
		closed.Add(1)
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, int32(2), closed.Load())
}

func TestResourcePool_CloseDrains(t *testing.T) {
	p, _ := newHandlePool(t, 2)
	h, err := p.Checkout(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Close(context.Background()) }()

	select {
	case <-done:
		t.Fatal("close returned while a handle was checked out")
	case <-time.After(20 * time.Millisecond):
	}
	p.Checkin(h)
	require.NoError(t, <-done)
	assert.True(t, h.closed.Load())

	_, err = p.Checkout(context.Background())
	assert.ErrorIs(t, err, api.ErrPoolClosed)
}
