// File: internal/httpconn/helpers_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpconn

import (
	"bytes"
	"context"
	"io/fs"
	"sync"
	"testing"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/pool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// memSocket is an in-memory Socket. Reads drain in; writes append to out,
// at most writeChunk bytes per call, and every blockEvery-th call would
// block.
type memSocket struct {
	fd         int
	in         []byte
	out        bytes.Buffer
	writeChunk int
	blockEvery int
	calls      int
	failWrite  error
	peerClosed bool
	closed     bool
}

func (s *memSocket) Fd() int { return s.fd }

func (s *memSocket) Read(p []byte) (int, error) {
	if len(s.in) == 0 {
		if s.peerClosed {
			return 0, api.ErrPeerClosed
		}
		return 0, api.ErrWouldBlock
	}
	n := copy(p, s.in)
	s.in = s.in[n:]
	return n, nil
}

func (s *memSocket) Writev(bufs [][]byte) (int, error) {
	s.calls++
	if s.failWrite != nil {
		return 0, s.failWrite
	}
	if s.blockEvery > 0 && s.calls%s.blockEvery == 0 {
		return 0, api.ErrWouldBlock
	}
	budget := s.writeChunk
	total := 0
	for _, b := range bufs {
		if s.writeChunk > 0 && len(b) > budget {
			b = b[:budget]
		}
		s.out.Write(b)
		total += len(b)
		if s.writeChunk > 0 {
			budget -= len(b)
			if budget == 0 {
				break
			}
		}
	}
	return total, nil
}

func (s *memSocket) Close() error {
	s.closed = true
	return nil
}

type rearmCall struct {
	fd int
	ev api.EventType
}

type recordingRearmer struct {
	mu    sync.Mutex
	calls []rearmCall
}

func (r *recordingRearmer) Rearm(fd int, ev api.EventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, rearmCall{fd, ev})
	return nil
}

func (r *recordingRearmer) last() api.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return 0
	}
	return r.calls[len(r.calls)-1].ev
}

type memFile struct {
	data []byte
	mode fs.FileMode
	dir  bool
}

type memPayload struct {
	data     []byte
	released *int
}

func (p *memPayload) Bytes() []byte { return p.data }

func (p *memPayload) Release() error {
	*p.released++
	return nil
}

// memSource serves files from a map keyed by cleaned path.
type memSource struct {
	files    map[string]memFile
	opened   int
	released int
}

func (m *memSource) Stat(name string) (api.FileInfo, error) {
	f, ok := m.files[name]
	if !ok {
		return api.FileInfo{}, api.ErrNotFound
	}
	return api.FileInfo{Size: int64(len(f.data)), Mode: f.mode, Dir: f.dir}, nil
}

func (m *memSource) Open(name string, size int64) (api.Payload, error) {
	f, ok := m.files[name]
	if !ok {
		return nil, api.ErrNotFound
	}
	m.opened++
	return &memPayload{data: f.data[:size], released: &m.released}, nil
}

// memCreds is a plain map; Register goes through the session.
type memCreds struct {
	mu    sync.Mutex
	users map[string]string
}

func (c *memCreds) Lookup(user, password string) api.LookupResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	pw, ok := c.users[user]
	switch {
	case !ok:
		return api.LookupNotFound
	case pw == password:
		return api.LookupMatch
	default:
		return api.LookupMismatch
	}
}

func (c *memCreds) Register(sess api.BackendSession, user, password string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.users[user]; ok {
		return false, nil
	}
	if err := sess.Insert(user, []byte(password)); err != nil {
		return false, err
	}
	c.users[user] = password
	return true, nil
}

type nopSession struct{ inserted []string }

func (s *nopSession) ForEach(func(string, []byte) error) error { return nil }
func (s *nopSession) Insert(user string, _ []byte) error {
	s.inserted = append(s.inserted, user)
	return nil
}
func (s *nopSession) Alive() bool  { return true }
func (s *nopSession) Close() error { return nil }

const indexHTML = "<html><body>hello</body></html>"

type fixture struct {
	env      *Env
	src      *memSource
	creds    *memCreds
	rearmer  *recordingRearmer
	sessions *pool.ResourcePool[api.BackendSession]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	src := &memSource{files: map[string]memFile{
		"/index.html":         {data: []byte(indexHTML), mode: 0o644},
		"/log.html":           {data: []byte("login page"), mode: 0o644},
		"/register.html":      {data: []byte("register page"), mode: 0o644},
		"/welcome.html":       {data: []byte("welcome"), mode: 0o644},
		"/logError.html":      {data: []byte("bad login"), mode: 0o644},
		"/registerError.html": {data: []byte("bad register"), mode: 0o644},
		"/picture.html":       {data: []byte("pictures"), mode: 0o644},
		"/video.html":         {data: []byte("videos"), mode: 0o644},
		"/secret.html":        {data: []byte("secret"), mode: 0o600},
		"/empty.html":         {data: nil, mode: 0o644},
		"/assets":             {mode: fs.ModeDir | 0o755, dir: true},
	}}
	creds := &memCreds{users: map[string]string{"alice": "wonder"}}
	sessions, err := pool.NewResourcePool(2, func() (api.BackendSession, error) {
		return &nopSession{}, nil
	}, nil)
	require.NoError(t, err)
	rearmer := &recordingRearmer{}
	return &fixture{
		env: &Env{
			DefaultDocument: "index.html",
			Source:          src,
			Credentials:     creds,
			Sessions:        sessions,
			ReadBuffers:     pool.NewBufferPool(2048),
			WriteBuffers:    pool.NewBufferPool(1024),
			Reactor:         rearmer,
			Log:             zerolog.Nop(),
		},
		src:      src,
		creds:    creds,
		rearmer:  rearmer,
		sessions: sessions,
	}
}

func (f *fixture) conn(in string) (*Conn, *memSocket) {
	sock := &memSocket{fd: 7, in: []byte(in)}
	return New(sock, "127.0.0.1:5555", f.env), sock
}

// roundTrip reads, processes and flushes one request.
func (f *fixture) roundTrip(t *testing.T, in string) (*Conn, *memSocket, WriteResult) {
	t.Helper()
	c, sock := f.conn(in)
	require.NoError(t, c.ReadOnce())
	require.NotZero(t, c.Process(context.Background()))
	require.Equal(t, api.EventWrite, f.rearmer.last())
	res := c.Write()
	for res == WriteAgain {
		res = c.Write()
	}
	return c, sock, res
}

// feed appends raw bytes to the read buffer as if read from the socket.
func feed(c *Conn, b []byte) {
	c.filled += copy(c.rbuf[c.filled:], b)
}
