// Package pool
// Author: momentics <momentics@gmail.com>
//
// Bounded hand-off and reuse primitives for hioload-httpd: the blocking
// task/log queue, the semaphore-gated backend resource pool and fixed-size
// I/O buffer recycling.
// See ring.go, resource.go, objpool.go for implementation details.
package pool
