// File: internal/httpconn/socket_linux.go
//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw fd socket over golang.org/x/sys/unix.

package httpconn

import (
	"fmt"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

// FdSocket drives an already non-blocking stream socket descriptor.
type FdSocket struct {
	fd int
}

// NewFdSocket wraps fd and switches it to non-blocking mode.
func NewFdSocket(fd int) (*FdSocket, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set nonblock fd=%d: %w", fd, err)
	}
	return &FdSocket{fd: fd}, nil
}

// Fd returns the descriptor.
func (s *FdSocket) Fd() int { return s.fd }

// Read performs one read(2), retrying on EINTR.
func (s *FdSocket) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, fmt.Errorf("read fd=%d: %w", s.fd, err)
		case n == 0 && len(p) > 0:
			return 0, api.ErrPeerClosed
		}
		return n, nil
	}
}

// Writev performs one writev(2) of the non-empty segments of bufs.
func (s *FdSocket) Writev(bufs [][]byte) (int, error) {
	for {
		n, err := unix.Writev(s.fd, bufs)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, fmt.Errorf("writev fd=%d: %w", s.fd, err)
		}
		return n, nil
	}
}

// Close closes the descriptor.
func (s *FdSocket) Close() error {
	return unix.Close(s.fd)
}
