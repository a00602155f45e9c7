// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/internal/concurrency"
	"github.com/momentics/hioload-httpd/internal/httpconn"
	"github.com/momentics/hioload-httpd/internal/timer"
	"github.com/momentics/hioload-httpd/pool"
	"github.com/momentics/hioload-httpd/reactor"
	"github.com/rs/zerolog"
)

// entry is one row of the connection table.
type entry struct {
	conn  *httpconn.Conn
	timer *timer.Timer
}

// Server owns the reactor goroutine and everything it multiplexes.
type Server struct {
	cfg     *Config
	log     zerolog.Logger
	metrics control.Metrics
	probes  api.Debug

	reactor  api.Reactor
	listenFd int
	addr     net.Addr
	relay    *relay
	env      *httpconn.Env
	workers  *concurrency.WorkerPool[*httpconn.Conn]

	// Reactor goroutine only.
	conns    map[int]*entry
	timers   *timer.Heap
	stopping bool

	// Mirrors for probes and tests.
	active atomic.Int64
	armed  atomic.Int64

	running  atomic.Bool
	stopOnce sync.Once
	ready    chan struct{}
	done     chan struct{}
}

// New binds the listener and prepares the reactor, worker pool and
// control channel. Serving starts with Run.
func New(cfg *Config, src api.ByteSource, creds api.Credentials, sessions api.Checkout[api.BackendSession], opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		log:      zerolog.Nop(),
		metrics:  control.NopMetrics{},
		listenFd: -1,
		conns:    make(map[int]*entry),
		timers:   timer.New(),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With().Str("component", "server").Logger()

	r, err := reactor.New()
	if err != nil {
		return nil, fmt.Errorf("create reactor: %w", err)
	}
	s.reactor = r

	s.env = &httpconn.Env{
		DefaultDocument: cfg.DefaultDocument,
		Source:          src,
		Credentials:     creds,
		Sessions:        sessions,
		ReadBuffers:     pool.NewBufferPool(cfg.ReadBufferSize),
		WriteBuffers:    pool.NewBufferPool(cfg.WriteBufferSize),
		Reactor:         r,
		Log:             s.log,
	}

	if err := s.open(); err != nil {
		s.closeFds()
		return nil, err
	}

	s.workers, err = concurrency.NewWorkerPool(cfg.Workers, cfg.QueueSize, s.process, s.log)
	if err != nil {
		s.closeFds()
		return nil, err
	}

	if s.probes != nil {
		s.registerProbes(s.probes)
	}
	return s, nil
}

// open binds the listener and control channel and registers both.
func (s *Server) open() error {
	fd, addr, err := listenTCP(s.cfg.ListenAddr, s.cfg.Backlog)
	if err != nil {
		return err
	}
	s.listenFd, s.addr = fd, addr

	mode := api.LevelTriggered
	if s.cfg.ListenerEdgeTriggered {
		mode = api.EdgeTriggered
	}
	if err := s.reactor.Add(fd, api.EventRead, mode); err != nil {
		return fmt.Errorf("register listener: %w", err)
	}

	s.relay, err = newRelay(s.cfg.HandleSignals, s.log)
	if err != nil {
		return err
	}
	if err := s.reactor.Add(s.relay.readFd(), api.EventRead, api.LevelTriggered); err != nil {
		return fmt.Errorf("register control channel: %w", err)
	}
	return nil
}

// process runs on a worker goroutine.
func (s *Server) process(ctx context.Context, c *httpconn.Conn) {
	start := time.Now()
	if status := c.Process(ctx); status != 0 {
		s.metrics.RequestServed(status, time.Since(start))
	}
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Ready is closed once Run has entered its loop.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed once Run has released every resource.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// ActiveConnections returns the size of the connection table.
func (s *Server) ActiveConnections() int {
	return int(s.active.Load())
}

// Stop asks the loop to exit through the control channel, the same path a
// SIGTERM takes. Safe to call from any goroutine, any number of times.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.relay.send(sigStop)
	})
}

func (s *Server) registerProbes(dp api.Debug) {
	dp.RegisterProbe("server.listen", func() any {
		return s.addr.String()
	})
	dp.RegisterProbe("server.active_connections", func() any {
		return s.active.Load()
	})
	dp.RegisterProbe("server.armed_timers", func() any {
		return s.armed.Load()
	})
	dp.RegisterProbe("server.workers", func() any {
		return s.workers.Stats()
	})
}

func (s *Server) closeFds() {
	if s.relay != nil {
		s.relay.close()
	}
	if s.listenFd >= 0 {
		closeFd(s.listenFd)
		s.listenFd = -1
	}
	if s.reactor != nil {
		_ = s.reactor.Close()
	}
}
