//go:build linux
// +build linux

// File: server/listener_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking TCP listener over raw descriptors.

package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/momentics/hioload-httpd/internal/httpconn"
	"golang.org/x/sys/unix"
)

// busyReply is written synchronously to clients over the connection ceiling.
var busyReply = []byte("Internal server busy")

// listenTCP opens a non-blocking listening socket with SO_REUSEADDR.
func listenTCP(addr string, backlog int) (int, net.Addr, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, nil, fmt.Errorf("resolve %s: %w", addr, err)
	}

	domain := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := tcpAddr.IP.To4(); ip4 != nil || tcpAddr.IP == nil {
		in4 := &unix.SockaddrInet4{Port: tcpAddr.Port}
		copy(in4.Addr[:], ip4)
		sa = in4
	} else {
		domain = unix.AF_INET6
		in6 := &unix.SockaddrInet6{Port: tcpAddr.Port}
		copy(in6.Addr[:], tcpAddr.IP.To16())
		sa = in6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("getsockname: %w", err)
	}
	return fd, sockaddrToTCP(bound), nil
}

// acceptConns accepts until EAGAIN in edge-triggered mode, once otherwise.
func (s *Server) acceptConns() {
	for {
		nfd, sa, err := unix.Accept4(s.listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			switch {
			case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
				continue
			case errors.Is(err, unix.EAGAIN):
			default:
				s.log.Error().Err(err).Msg("accept")
			}
			return
		}
		sock, err := httpconn.NewFdSocket(nfd)
		if err != nil {
			s.log.Error().Err(err).Msg("prepare accepted socket")
			unix.Close(nfd)
		} else {
			s.admit(sock, peerString(sa))
		}
		if !s.cfg.ListenerEdgeTriggered {
			return
		}
	}
}

// refuse tells the client the server is busy and closes fd.
func refuse(fd int) {
	_, _ = unix.Write(fd, busyReply)
	unix.Close(fd)
}

func closeFd(fd int) {
	_ = unix.Close(fd)
}

func sockaddrToTCP(sa unix.Sockaddr) *net.TCPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]).To16(), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port, Zone: zoneName(a.ZoneId)}
	}
	return &net.TCPAddr{}
}

func zoneName(id uint32) string {
	if id == 0 {
		return ""
	}
	if ifi, err := net.InterfaceByIndex(int(id)); err == nil {
		return ifi.Name
	}
	return strconv.Itoa(int(id))
}

func peerString(sa unix.Sockaddr) string {
	if sa == nil {
		return "unknown"
	}
	return sockaddrToTCP(sa).String()
}
