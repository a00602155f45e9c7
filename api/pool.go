// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines abstract pooling APIs: byte buffer reuse and checkout/checkin of
// backend resources.

package api

import "context"

// BytePool provides reusable fixed-size []byte buffers for connection I/O.
type BytePool interface {
	// Get returns a zeroed-length buffer of the pool's size.
	Get() []byte

	// Put returns a buffer to the pool.
	Put(buf []byte)
}

// Checkout hands out use-rights on pooled resources. Callers must return
// every handle; With does that on all exit paths.
type Checkout[T any] interface {
	Checkout(ctx context.Context) (T, error)
	Checkin(res T)
	With(ctx context.Context, fn func(res T) error) error
}
