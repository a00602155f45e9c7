// File: internal/httpconn/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpconn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-httpd/api"
	"github.com/rs/zerolog"
)

// Env holds the collaborators shared by every connection.
type Env struct {
	// DefaultDocument replaces a bare "/" target.
	DefaultDocument string

	Source      api.ByteSource
	Credentials api.Credentials
	Sessions    api.Checkout[api.BackendSession]

	ReadBuffers  api.BytePool
	WriteBuffers api.BytePool

	// Reactor re-arms the connection fd for its next readiness kind.
	Reactor api.Rearmer

	Log zerolog.Logger
}

// Conn is one accepted client connection.
type Conn struct {
	mu   sync.Mutex
	env  *Env
	sock Socket
	fd   int
	peer string
	log  zerolog.Logger

	// read side: rbuf[start:checked] is the line being scanned,
	// rbuf[:filled] holds received bytes.
	rbuf    []byte
	checked int
	start   int
	filled  int
	state   State
	req     Request

	// write side: iov[0] aliases wbuf[:wlen], iov[1] the file payload.
	wbuf     []byte
	wlen     int
	iov      [2][]byte
	toSend   int
	sent     int
	payload  api.Payload
	file     string
	fileSize int64
	status   int

	lastWritten int

	forceClose     bool
	closeRequested bool
	closed         bool

	// abandoned is set by TryClose; the current lock holder closes.
	abandoned atomic.Bool
}

// New wraps sock. Buffers are taken from env's pools and returned by Close.
func New(sock Socket, peer string, env *Env) *Conn {
	c := &Conn{
		env:  env,
		sock: sock,
		fd:   sock.Fd(),
		peer: peer,
		rbuf: env.ReadBuffers.Get(),
		wbuf: env.WriteBuffers.Get(),
	}
	c.log = env.Log.With().Int("fd", c.fd).Str("peer", peer).Logger()
	return c
}

// Fd returns the socket descriptor.
func (c *Conn) Fd() int { return c.fd }

// Peer returns the remote address given at accept time.
func (c *Conn) Peer() string { return c.peer }

// State returns the parser position.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Request returns a copy of the request parsed so far.
func (c *Conn) Request() Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req
}

// CloseRequested reports whether a worker asked the reactor to evict.
func (c *Conn) CloseRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeRequested
}

// Closed reports whether Close has run.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) keepAlive() bool {
	return c.req.KeepAlive && !c.forceClose
}

// ReadOnce drains the socket into the read buffer until it would block or
// the buffer is full. A full buffer is left for the parser to reject.
func (c *Conn) ReadOnce() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return api.ErrConnectionClosed
	}
	for c.filled < len(c.rbuf) {
		n, err := c.sock.Read(c.rbuf[c.filled:])
		if errors.Is(err, api.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return err
		}
		c.filled += n
	}
	return nil
}

// Process runs on a worker: parse what has been read, resolve and compose
// a response once the request is complete, then re-arm the fd. It returns
// the composed status code, or 0 when more input is needed.
func (c *Conn) Process(ctx context.Context) int {
	c.mu.Lock()
	status := c.processLocked(ctx)
	c.mu.Unlock()
	if c.abandoned.Load() {
		_ = c.Close()
	}
	return status
}

func (c *Conn) processLocked(ctx context.Context) int {
	if c.closed {
		return 0
	}

	var outcome Outcome
	res, err := c.parse()
	switch res {
	case parseIncomplete:
		c.rearm(api.EventRead)
		return 0
	case parseFailed:
		outcome = OutcomeBadRequest
		if errors.Is(err, api.ErrRequestTooLarge) {
			c.forceClose = true
		}
		c.log.Debug().Err(err).Msg("bad request")
	case parseComplete:
		outcome, err = c.resolve(ctx)
		switch {
		case outcome == OutcomeInternal:
			c.log.Warn().Err(err).Str("file", c.file).Msg("resolve failed")
		case err != nil:
			c.log.Debug().Err(err).Str("file", c.file).Msg("request rejected")
		}
	}

	if err := c.compose(outcome); err != nil {
		c.log.Error().Err(err).Int("status", c.status).Msg("compose response")
		c.releasePayload()
		c.closeRequested = true
	}
	c.rearm(api.EventWrite)
	return c.status
}

// rearm logs instead of failing; an fd that cannot be re-armed goes quiet
// and is reclaimed by its idle timer.
func (c *Conn) rearm(ev api.EventType) {
	if c.abandoned.Load() {
		return
	}
	if err := c.env.Reactor.Rearm(c.fd, ev); err != nil {
		c.log.Warn().Err(err).Msg("rearm")
	}
}

func (c *Conn) releasePayload() {
	if c.payload == nil {
		return
	}
	if err := c.payload.Release(); err != nil {
		c.log.Warn().Err(err).Str("file", c.file).Msg("release payload")
	}
	c.payload = nil
}

// reset prepares the connection for the next request on a persistent
// connection. Unparsed bytes past the request are dropped.
func (c *Conn) reset() {
	c.checked, c.start, c.filled = 0, 0, 0
	c.state = StateRequestLine
	c.req = Request{}
	c.wlen = 0
	c.iov = [2][]byte{}
	c.toSend, c.sent = 0, 0
	c.file, c.fileSize, c.status = "", 0, 0
	c.forceClose = false
}

// Close releases the payload and buffers and closes the socket. Later calls
// are no-ops.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

// TryClose closes the connection unless a worker is processing it. In that
// case it reports false and the worker closes the connection when Process
// returns, without re-arming it.
func (c *Conn) TryClose() (bool, error) {
	c.abandoned.Store(true)
	if !c.mu.TryLock() {
		return false, nil
	}
	defer c.mu.Unlock()
	return true, c.closeLocked()
}

func (c *Conn) closeLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.releasePayload()
	c.iov = [2][]byte{}
	if c.rbuf != nil {
		c.env.ReadBuffers.Put(c.rbuf)
		c.rbuf = nil
	}
	if c.wbuf != nil {
		c.env.WriteBuffers.Put(c.wbuf)
		c.wbuf = nil
	}
	return c.sock.Close()
}
