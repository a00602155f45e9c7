//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor implementation.

package reactor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

// epollReactor is an epoll-based event reactor. Wait is called from one
// goroutine; Add, Rearm and Remove may be called from any.
type epollReactor struct {
	epfd   int
	mu     sync.RWMutex
	modes  map[int]api.TriggerMode
	raw    []unix.EpollEvent
	closed atomic.Bool
}

func newReactor() (api.Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollReactor{
		epfd:  epfd,
		modes: make(map[int]api.TriggerMode),
	}, nil
}

// toEpoll converts an interest set and mode into epoll flags. Peer
// half-close is always watched.
func toEpoll(events api.EventType, mode api.TriggerMode) uint32 {
	flags := uint32(unix.EPOLLRDHUP)
	if events.Has(api.EventRead) {
		flags |= unix.EPOLLIN
	}
	if events.Has(api.EventWrite) {
		flags |= unix.EPOLLOUT
	}
	switch mode {
	case api.EdgeTriggered:
		flags |= unix.EPOLLET
	case api.OneShot:
		flags |= unix.EPOLLET | unix.EPOLLONESHOT
	}
	return flags
}

func fromEpoll(flags uint32) api.EventType {
	var ev api.EventType
	if flags&unix.EPOLLIN != 0 {
		ev |= api.EventRead
	}
	if flags&unix.EPOLLOUT != 0 {
		ev |= api.EventWrite
	}
	if flags&unix.EPOLLERR != 0 {
		ev |= api.EventError
	}
	if flags&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		ev |= api.EventHangup
	}
	return ev
}

// Add registers fd for events in the given mode.
func (r *epollReactor) Add(fd int, events api.EventType, mode api.TriggerMode) error {
	if r.closed.Load() {
		return api.ErrReactorClosed
	}
	ev := unix.EpollEvent{Events: toEpoll(events, mode), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add fd=%d: %w", fd, err)
	}
	r.mu.Lock()
	r.modes[fd] = mode
	r.mu.Unlock()
	return nil
}

// Rearm replaces the interest set of fd, keeping the mode chosen at Add.
func (r *epollReactor) Rearm(fd int, events api.EventType) error {
	if r.closed.Load() {
		return api.ErrReactorClosed
	}
	r.mu.RLock()
	mode, ok := r.modes[fd]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("epoll ctl mod fd=%d: %w", fd, api.ErrNotFound)
	}
	ev := unix.EpollEvent{Events: toEpoll(events, mode), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod fd=%d: %w", fd, err)
	}
	return nil
}

// Remove deregisters fd.
func (r *epollReactor) Remove(fd int) error {
	r.mu.Lock()
	delete(r.modes, fd)
	r.mu.Unlock()
	if r.closed.Load() {
		return api.ErrReactorClosed
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del fd=%d: %w", fd, err)
	}
	return nil
}

// Wait blocks for up to timeoutMs and fills events. EINTR is reported as
// zero events.
func (r *epollReactor) Wait(events []api.Event, timeoutMs int) (int, error) {
	if r.closed.Load() {
		return 0, api.ErrReactorClosed
	}
	if cap(r.raw) < len(events) {
		r.raw = make([]unix.EpollEvent, len(events))
	}
	raw := r.raw[:len(events)]
	n, err := unix.EpollWait(r.epfd, raw, timeoutMs)
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		events[i] = api.Event{Fd: int(raw[i].Fd), Events: fromEpoll(raw[i].Events)}
	}
	return n, nil
}

// Close closes the epoll instance.
func (r *epollReactor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(r.epfd)
}
