// File: internal/httpconn/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpconn

// Socket is the non-blocking byte stream under a Conn.
//
// Read returns api.ErrWouldBlock when no data is pending and
// api.ErrPeerClosed on orderly shutdown. Writev returns api.ErrWouldBlock
// when the send buffer is full; a partial write is not an error.
type Socket interface {
	Fd() int
	Read(p []byte) (int, error)
	Writev(bufs [][]byte) (int, error)
	Close() error
}
