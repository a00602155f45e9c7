// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor loop: accept, dispatch readable connections to workers, flush
// writable ones, sweep idle timers and tear connections down.

package server

import (
	"context"
	"errors"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/internal/httpconn"
)

// Run serves until Stop, a relayed SIGTERM/SIGINT or ctx cancellation,
// then releases every connection, the worker pool and all descriptors.
// A readiness facility failure is returned.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.shutdown()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.done:
		}
	}()

	events := make([]api.Event, s.cfg.MaxEvents)
	s.relay.armAlarm(s.cfg.TimeSlot)
	s.log.Info().
		Str("listen", s.addr.String()).
		Int("workers", s.workers.NumWorkers()).
		Dur("idle_timeout", s.cfg.IdleTimeout).
		Msg("server started")
	close(s.ready)

	for !s.stopping {
		n, err := s.reactor.Wait(events, -1)
		if err != nil {
			s.log.Error().Err(err).Msg("readiness wait failed")
			return api.WrapError(api.ErrCodeFacility, "reactor wait", err)
		}

		sweepDue := false
		for _, ev := range events[:n] {
			switch {
			case ev.Fd == s.listenFd:
				s.acceptConns()
			case ev.Fd == s.relay.readFd():
				sweep, stop := s.relay.drain()
				sweepDue = sweepDue || sweep
				if stop {
					s.log.Info().Msg("stop requested")
					s.stopping = true
				}
			case ev.Events.Any(api.EventHangup | api.EventError):
				s.evict(ev.Fd, control.ClosePeer)
			case ev.Events.Has(api.EventRead):
				s.handleRead(ev.Fd)
			case ev.Events.Has(api.EventWrite):
				s.handleWrite(ev.Fd)
			}
		}

		if sweepDue {
			s.sweep(time.Now())
			s.relay.armAlarm(s.cfg.TimeSlot)
		}
	}
	return nil
}

// admit adds an accepted connection to the table, or refuses it at the
// ceiling.
func (s *Server) admit(sock httpconn.Socket, peer string) {
	fd := sock.Fd()
	if len(s.conns) >= s.cfg.MaxConnections {
		s.log.Warn().Err(api.ErrServerBusy).Str("peer", peer).Int("active", len(s.conns)).Msg("connection refused")
		refuse(fd)
		s.metrics.ConnectionRejected(control.RejectBusy)
		return
	}

	c := httpconn.New(sock, peer, s.env)
	if err := s.reactor.Add(fd, api.EventRead, api.OneShot); err != nil {
		s.log.Error().Err(err).Int("fd", fd).Msg("register connection")
		_ = c.Close()
		return
	}
	e := &entry{conn: c}
	e.timer = s.timers.Add(time.Now().Add(s.cfg.IdleTimeout), func() {
		s.evictEntry(e, control.CloseIdle)
	})
	s.conns[fd] = e
	s.tableChanged()
	s.metrics.ConnectionAccepted()
	s.log.Debug().Int("fd", fd).Str("peer", peer).Msg("connection accepted")
}

func (s *Server) handleRead(fd int) {
	e, ok := s.conns[fd]
	if !ok {
		return
	}
	if err := e.conn.ReadOnce(); err != nil {
		reason := control.CloseError
		if errors.Is(err, api.ErrPeerClosed) {
			reason = control.ClosePeer
		}
		s.evictEntry(e, reason)
		return
	}
	if err := s.workers.Submit(e.conn); err != nil {
		s.log.Warn().Err(err).Int("fd", fd).Msg("dispatch rejected")
		s.metrics.ConnectionRejected(control.RejectQueueFull)
		s.evictEntry(e, control.CloseError)
		return
	}
	s.refresh(e)
}

func (s *Server) handleWrite(fd int) {
	e, ok := s.conns[fd]
	if !ok {
		return
	}
	res := e.conn.Write()
	s.metrics.BytesWritten(e.conn.LastWritten())
	switch res {
	case httpconn.WriteAgain, httpconn.WriteKeepAlive:
		s.refresh(e)
	case httpconn.WriteClose:
		s.evictEntry(e, control.CloseDone)
	default:
		s.evictEntry(e, control.CloseError)
	}
}

// refresh pushes the idle deadline out after activity.
func (s *Server) refresh(e *entry) {
	s.timers.Reset(e.timer, time.Now().Add(s.cfg.IdleTimeout))
}

func (s *Server) sweep(now time.Time) {
	evicted := s.timers.Sweep(now)
	s.metrics.TimerSweep(evicted, time.Since(now))
	if evicted > 0 {
		s.log.Debug().Int("evicted", evicted).Int("active", len(s.conns)).Msg("idle sweep")
	}
	s.armed.Store(int64(s.timers.Len()))
}

func (s *Server) evict(fd int, reason string) {
	if e, ok := s.conns[fd]; ok {
		s.evictEntry(e, reason)
	}
}

// evictEntry is the only teardown path. The table lookup makes a second
// call for the same connection a no-op. It never waits on a connection a
// worker is processing; that worker closes it instead.
func (s *Server) evictEntry(e *entry, reason string) {
	fd := e.conn.Fd()
	if s.conns[fd] != e {
		return
	}
	delete(s.conns, fd)
	if err := s.reactor.Remove(fd); err != nil {
		s.log.Debug().Err(err).Int("fd", fd).Msg("deregister connection")
	}
	s.timers.Remove(e.timer)
	closed, err := e.conn.TryClose()
	switch {
	case err != nil:
		s.log.Debug().Err(err).Int("fd", fd).Msg("close connection")
	case !closed:
		s.log.Debug().Int("fd", fd).Msg("close deferred to worker")
	}
	s.tableChanged()
	s.metrics.ConnectionClosed(reason)
	s.log.Debug().Int("fd", fd).Str("peer", e.conn.Peer()).Str("reason", reason).Msg("connection closed")
}

func (s *Server) tableChanged() {
	s.active.Store(int64(len(s.conns)))
	s.armed.Store(int64(s.timers.Len()))
	s.metrics.SetActiveConnections(len(s.conns))
}

// shutdown drains the workers, then evicts every connection and closes
// the listener, control channel and reactor.
func (s *Server) shutdown() {
	s.workers.Stop()
	for _, e := range s.conns {
		s.evictEntry(e, control.CloseShutdown)
	}
	s.timers.Clear()
	s.armed.Store(0)
	s.closeFds()
	s.log.Info().Msg("server stopped")
	close(s.done)
}
