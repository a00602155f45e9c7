//go:build linux
// +build linux

// File: server/relay_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Control channel: a socketpair carrying one byte per event into the
// reactor. Signals and the sweep alarm are delivered as data, never
// handled asynchronously.

package server

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Control bytes carried over the channel.
const (
	sigAlarm = byte(unix.SIGALRM)
	sigStop  = byte(unix.SIGTERM)
	sigInt   = byte(unix.SIGINT)
)

type relay struct {
	mu     sync.Mutex
	rfd    int
	wfd    int
	closed bool
	alarm  *time.Timer
	sigs   chan os.Signal
	quit   chan struct{}
	log    zerolog.Logger
}

// newRelay creates the socketpair and, when handleSignals is set, starts
// forwarding SIGTERM and SIGINT.
func newRelay(handleSignals bool, log zerolog.Logger) (*relay, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("control socketpair: %w", err)
	}
	r := &relay{
		rfd:  fds[0],
		wfd:  fds[1],
		quit: make(chan struct{}),
		log:  log,
	}
	if handleSignals {
		r.sigs = make(chan os.Signal, 4)
		signal.Notify(r.sigs, syscall.SIGTERM, syscall.SIGINT)
		go r.forward()
	}
	return r, nil
}

func (r *relay) readFd() int {
	return r.rfd
}

func (r *relay) forward() {
	for {
		select {
		case sig := <-r.sigs:
			if n, ok := sig.(syscall.Signal); ok {
				r.log.Info().Str("signal", sig.String()).Msg("signal received")
				r.send(byte(n))
			}
		case <-r.quit:
			return
		}
	}
}

// send writes one control byte. A full channel already carries a pending
// event and the byte is dropped.
func (r *relay) send(b byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for {
		_, err := unix.Write(r.wfd, []byte{b})
		if err == unix.EINTR {
			continue
		}
		if err != nil && err != unix.EAGAIN {
			r.log.Warn().Err(err).Msg("control channel write")
		}
		return
	}
}

// armAlarm schedules one sweep byte after d.
func (r *relay) armAlarm(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.alarm != nil {
		r.alarm.Stop()
	}
	r.alarm = time.AfterFunc(d, func() { r.send(sigAlarm) })
}

// drain reads every pending control byte.
func (r *relay) drain() (sweep, stop bool) {
	var buf [1024]byte
	for {
		n, err := unix.Read(r.rfd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil || n <= 0 {
			return sweep, stop
		}
		for _, b := range buf[:n] {
			switch b {
			case sigAlarm:
				sweep = true
			case sigStop, sigInt:
				stop = true
			}
		}
	}
}

func (r *relay) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.alarm != nil {
		r.alarm.Stop()
	}
	if r.sigs != nil {
		signal.Stop(r.sigs)
		close(r.quit)
	}
	unix.Close(r.rfd)
	unix.Close(r.wfd)
}
