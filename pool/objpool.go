// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package pool

import "sync"

// BufferPool recycles fixed-size byte buffers through a sync.Pool. Buffers
// of any other capacity are dropped on Put.
type BufferPool struct {
	pool *sync.Pool
	size int
}

// NewBufferPool creates a pool of size-byte buffers.
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		panic("buffer size must be positive")
	}
	return &BufferPool{
		size: size,
		pool: &sync.Pool{New: func() any {
			b := make([]byte, size)
			return &b
		}},
	}
}

// Get returns a buffer of len == cap == Size().
func (bp *BufferPool) Get() []byte {
	b := *(bp.pool.Get().(*[]byte))
	return b[:bp.size]
}

// Put returns buf for reuse.
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) != bp.size {
		return
	}
	buf = buf[:bp.size]
	clear(buf)
	bp.pool.Put(&buf)
}

// Size returns the buffer size served by this pool.
func (bp *BufferPool) Size() int {
	return bp.size
}
