//go:build linux

// File: server/server_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server_test

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/internal/credential"
	"github.com/momentics/hioload-httpd/internal/filesrc"
	"github.com/momentics/hioload-httpd/pool"
	"github.com/momentics/hioload-httpd/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	srv    *server.Server
	cancel context.CancelFunc
	errCh  chan error
}

func testConfig() *server.Config {
	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Backlog = 64
	cfg.Workers = 2
	cfg.QueueSize = 64
	cfg.MaxEvents = 64
	cfg.HandleSignals = false
	return cfg
}

func startServer(t *testing.T, cfg *server.Config, opts ...server.ServerOption) *harness {
	t.Helper()
	return startServerWith(t, cfg, nil, opts...)
}

// startServerWith lets wrap decorate the document source.
func startServerWith(t *testing.T, cfg *server.Config, wrap func(api.ByteSource) api.ByteSource, opts ...server.ServerOption) *harness {
	t.Helper()
	root := t.TempDir()
	pages := map[string]string{
		"index.html":    "hello index",
		"welcome.html":  "welcome back",
		"log.html":      "login page",
		"logError.html": "login failed",
	}
	for name, body := range pages {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o644))
	}

	store := credential.NewMemoryStore()
	sessions, err := pool.NewResourcePool(2, store.Open, func(s api.BackendSession) error { return s.Close() })
	require.NoError(t, err)
	reg := credential.NewRegistry(bcrypt.MinCost)
	require.NoError(t, sessions.With(context.Background(), func(sess api.BackendSession) error {
		_, err := reg.Seed(sess, map[string]string{"alice": "secret"})
		return err
	}))

	var src api.ByteSource = filesrc.New(root)
	if wrap != nil {
		src = wrap(src)
	}
	srv, err := server.New(cfg, src, reg, sessions, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{srv: srv, cancel: cancel, errCh: make(chan error, 1)}
	go func() { h.errCh <- srv.Run(ctx) }()

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	t.Cleanup(func() {
		h.stop(t)
		_ = sessions.Close(context.Background())
	})
	return h
}

func (h *harness) stop(t *testing.T) {
	h.cancel()
	select {
	case <-h.srv.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func (h *harness) dial(t *testing.T) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", h.srv.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.SetDeadline(time.Now().Add(5*time.Second)))
	return c
}

type response struct {
	status  int
	headers map[string]string
	body    string
}

func readResponse(t *testing.T, r *bufio.Reader) response {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	parts := strings.SplitN(strings.TrimRight(line, "\r\n"), " ", 3)
	require.Len(t, parts, 3)
	status, err := strconv.Atoi(parts[1])
	require.NoError(t, err)

	resp := response{status: status, headers: map[string]string{}}
	for {
		line, err = r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		k, v, ok := strings.Cut(line, ":")
		require.True(t, ok, line)
		resp.headers[k] = strings.TrimSpace(v)
	}
	n, err := strconv.Atoi(resp.headers["Content-Length"])
	require.NoError(t, err)
	body := make([]byte, n)
	_, err = io.ReadFull(r, body)
	require.NoError(t, err)
	resp.body = string(body)
	return resp
}

func expectEOF(t *testing.T, r io.Reader) {
	t.Helper()
	_, err := r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

// forEachListenerMode runs fn against an edge-triggered listener that
// accepts until EAGAIN and a level-triggered one that accepts once per
// notification.
func forEachListenerMode(t *testing.T, fn func(t *testing.T, cfg *server.Config)) {
	for _, edge := range []bool{true, false} {
		name := "level"
		if edge {
			name = "edge"
		}
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			cfg.ListenerEdgeTriggered = edge
			fn(t, cfg)
		})
	}
}

func TestServer_KeepAliveServesSequentialRequests(t *testing.T) {
	forEachListenerMode(t, testKeepAlive)
}

func testKeepAlive(t *testing.T, cfg *server.Config) {
	h := startServer(t, cfg)
	c := h.dial(t)
	r := bufio.NewReader(c)

	_, err := fmt.Fprint(c, "GET / HTTP/1.1\r\nHost: test\r\nConnection: keep-alive\r\n\r\n")
	require.NoError(t, err)
	resp := readResponse(t, r)
	assert.Equal(t, 200, resp.status)
	assert.Equal(t, "keep-alive", resp.headers["Connection"])
	assert.Equal(t, "hello index", resp.body)

	_, err = fmt.Fprint(c, "GET /1 HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	require.NoError(t, err)
	resp = readResponse(t, r)
	assert.Equal(t, 200, resp.status)
	assert.Equal(t, "login page", resp.body)
	assert.Equal(t, 1, h.srv.ActiveConnections())
}

func TestServer_NotFoundClosesConnection(t *testing.T) {
	forEachListenerMode(t, testNotFound)
}

func testNotFound(t *testing.T, cfg *server.Config) {
	h := startServer(t, cfg)
	c := h.dial(t)
	r := bufio.NewReader(c)

	_, err := fmt.Fprint(c, "GET /missing.html HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	resp := readResponse(t, r)
	assert.Equal(t, 404, resp.status)
	assert.Equal(t, "close", resp.headers["Connection"])
	expectEOF(t, r)
	assert.Eventually(t, func() bool { return h.srv.ActiveConnections() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServer_RequestSplitAcrossWrites(t *testing.T) {
	h := startServer(t, testConfig())
	c := h.dial(t)
	r := bufio.NewReader(c)

	for _, part := range []string{"GET /ind", "ex.html HT", "TP/1.1\r\nConn", "ection: close\r\n", "\r\n"} {
		_, err := c.Write([]byte(part))
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	resp := readResponse(t, r)
	assert.Equal(t, 200, resp.status)
	assert.Equal(t, "hello index", resp.body)
	expectEOF(t, r)
}

func TestServer_LoginRedirectsToWelcome(t *testing.T) {
	h := startServer(t, testConfig())
	cases := map[string]string{
		"user=alice&password=secret": "welcome back",
		"user=alice&password=wrong":  "login failed",
	}
	for form, want := range cases {
		c := h.dial(t)
		r := bufio.NewReader(c)
		_, err := fmt.Fprintf(c, "POST /2CGISQL.cgi HTTP/1.1\r\nContent-Length: %d\r\n\r\n%s", len(form), form)
		require.NoError(t, err)
		resp := readResponse(t, r)
		assert.Equal(t, 200, resp.status, form)
		assert.Equal(t, want, resp.body, form)
	}
}

func TestServer_IdleConnectionIsEvicted(t *testing.T) {
	cfg := testConfig()
	cfg.TimeSlot = 20 * time.Millisecond
	cfg.IdleTimeout = 60 * time.Millisecond
	h := startServer(t, cfg)

	c := h.dial(t)
	require.Eventually(t, func() bool { return h.srv.ActiveConnections() == 1 }, time.Second, 5*time.Millisecond)
	expectEOF(t, c)
	assert.Eventually(t, func() bool { return h.srv.ActiveConnections() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServer_ConnectionCeilingRefusesWithBusy(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	m := newMetricsRecorder()
	logs := &syncBuffer{}
	h := startServer(t, cfg, server.WithMetrics(m), server.WithLogger(zerolog.New(logs)))

	h.dial(t)
	require.Eventually(t, func() bool { return h.srv.ActiveConnections() == 1 }, time.Second, 5*time.Millisecond)

	extra := h.dial(t)
	got, err := io.ReadAll(extra)
	require.NoError(t, err)
	assert.Equal(t, "Internal server busy", string(got))
	assert.Equal(t, 1, h.srv.ActiveConnections())
	assert.Eventually(t, func() bool { return m.rejected(control.RejectBusy) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, logs.String(), api.ErrServerBusy.Error())
}

func TestServer_StopClosesConnections(t *testing.T) {
	dp := control.NewDebugProbes()
	h := startServer(t, testConfig(), server.WithDebugProbes(dp))
	c := h.dial(t)
	require.Eventually(t, func() bool { return h.srv.ActiveConnections() == 1 }, time.Second, 5*time.Millisecond)

	state := dp.DumpState()
	assert.EqualValues(t, 1, state["server.active_connections"])
	assert.EqualValues(t, 1, state["server.armed_timers"])

	h.srv.Stop()
	h.srv.Stop()
	select {
	case err := <-h.errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	expectEOF(t, c)
	assert.Equal(t, 0, h.srv.ActiveConnections())
}

func TestServer_RunTwice(t *testing.T) {
	h := startServer(t, testConfig())
	assert.ErrorIs(t, h.srv.Run(context.Background()), server.ErrAlreadyRunning)
}

func TestServer_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeout = cfg.TimeSlot / 2
	_, err := server.New(cfg, nil, nil, nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestServer_PeerHangupEvictsConnection(t *testing.T) {
	m := newMetricsRecorder()
	h := startServer(t, testConfig(), server.WithMetrics(m))

	c := h.dial(t)
	require.Eventually(t, func() bool { return h.srv.ActiveConnections() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.(*net.TCPConn).CloseWrite())

	assert.Eventually(t, func() bool { return m.closed(control.ClosePeer) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.srv.ActiveConnections())
	expectEOF(t, c)
}

func TestServer_LevelTriggeredListenerAcceptsBurst(t *testing.T) {
	cfg := testConfig()
	cfg.ListenerEdgeTriggered = false
	h := startServer(t, cfg)

	for i := 0; i < 5; i++ {
		h.dial(t)
	}
	assert.Eventually(t, func() bool { return h.srv.ActiveConnections() == 5 }, 2*time.Second, 5*time.Millisecond)
}

func TestServer_QueueFullEvictsWithoutResponse(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	m := newMetricsRecorder()
	slow := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	h := startServerWith(t, cfg, func(src api.ByteSource) api.ByteSource {
		slow.ByteSource = src
		return slow
	}, server.WithMetrics(m))
	t.Cleanup(slow.open)

	first := h.dial(t)
	_, err := fmt.Fprint(first, "GET /slow.html HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	select {
	case <-slow.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the first request")
	}

	// The only worker is busy: one of these waits in the queue, the other
	// finds it full.
	second, third := h.dial(t), h.dial(t)
	for _, c := range []net.Conn{second, third} {
		_, err := fmt.Fprint(c, "GET / HTTP/1.1\r\n\r\n")
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return m.rejected(control.RejectQueueFull) == 1 }, 2*time.Second, 5*time.Millisecond)
	slow.open()

	var replies []string
	for _, c := range []net.Conn{second, third} {
		got, err := io.ReadAll(c)
		require.NoError(t, err)
		replies = append(replies, string(got))
	}
	assert.ElementsMatch(t, []string{"", "HTTP/1.1 200"}, []string{
		prefix(replies[0], 12), prefix(replies[1], 12),
	})

	got, err := io.ReadAll(first)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(got), "HTTP/1.1 404 "), string(got))
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

// gatedSource holds the first Stat of /slow.html until open is called.
type gatedSource struct {
	api.ByteSource
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	gate    sync.Once
}

func (g *gatedSource) Stat(name string) (api.FileInfo, error) {
	if name == "/slow.html" {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.ByteSource.Stat(name)
}

func (g *gatedSource) open() {
	g.gate.Do(func() { close(g.release) })
}

// metricsRecorder counts rejections and closes by reason.
type metricsRecorder struct {
	control.NopMetrics
	mu      sync.Mutex
	rejects map[string]int
	closes  map[string]int
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{rejects: map[string]int{}, closes: map[string]int{}}
}

func (m *metricsRecorder) ConnectionRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejects[reason]++
}

func (m *metricsRecorder) ConnectionClosed(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes[reason]++
}

func (m *metricsRecorder) rejected(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejects[reason]
}

func (m *metricsRecorder) closed(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes[reason]
}

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
