// File: internal/httpconn/writer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpconn

import (
	"errors"

	"github.com/momentics/hioload-httpd/api"
)

// WriteResult tells the reactor what to do after a write attempt.
type WriteResult uint8

const (
	// WriteAgain: the socket would block; re-armed for write.
	WriteAgain WriteResult = iota
	// WriteKeepAlive: response flushed, connection reset and re-armed for read.
	WriteKeepAlive
	// WriteClose: response flushed or abandoned; evict the connection.
	WriteClose
	// WriteFailed: fatal socket error; evict the connection.
	WriteFailed
)

func (r WriteResult) String() string {
	switch r {
	case WriteAgain:
		return "again"
	case WriteKeepAlive:
		return "keep_alive"
	case WriteClose:
		return "close"
	default:
		return "failed"
	}
}

// Write flushes the composed response with writev. It runs on the
// reactor goroutine.
func (c *Conn) Write() WriteResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastWritten = 0
	if c.closed {
		return WriteFailed
	}
	if c.closeRequested {
		c.releasePayload()
		return WriteClose
	}
	if c.toSend == 0 {
		c.reset()
		c.rearm(api.EventRead)
		return WriteKeepAlive
	}

	for {
		n, err := c.sock.Writev(c.segments())
		if errors.Is(err, api.ErrWouldBlock) {
			c.rearm(api.EventWrite)
			return WriteAgain
		}
		if err != nil {
			c.log.Debug().Err(err).Int("pending", c.toSend).Msg("write failed")
			c.releasePayload()
			return WriteFailed
		}
		c.lastWritten += n
		c.advance(n)
		if c.toSend > 0 {
			continue
		}

		c.releasePayload()
		if !c.keepAlive() {
			return WriteClose
		}
		c.reset()
		c.rearm(api.EventRead)
		return WriteKeepAlive
	}
}

// LastWritten returns the bytes written by the most recent Write call.
func (c *Conn) LastWritten() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastWritten
}

// segments returns the non-empty iovecs.
func (c *Conn) segments() [][]byte {
	segs := make([][]byte, 0, 2)
	for _, s := range c.iov {
		if len(s) > 0 {
			segs = append(segs, s)
		}
	}
	return segs
}

// advance consumes n written bytes from the header then the payload.
func (c *Conn) advance(n int) {
	c.sent += n
	c.toSend -= n
	if n >= len(c.iov[0]) {
		n -= len(c.iov[0])
		c.iov[0] = nil
		c.iov[1] = c.iov[1][n:]
		return
	}
	c.iov[0] = c.iov[0][n:]
}
