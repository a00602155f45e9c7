//go:build !linux
// +build !linux

// File: server/platform_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"net"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/rs/zerolog"
)

const sigStop = 15

func listenTCP(string, int) (int, net.Addr, error) {
	return -1, nil, api.ErrNotSupported
}

func (s *Server) acceptConns() {}

func refuse(int) {}

func closeFd(int) {}

type relay struct{}

func newRelay(bool, zerolog.Logger) (*relay, error) { return nil, api.ErrNotSupported }

func (r *relay) readFd() int            { return -1 }
func (r *relay) send(byte)              {}
func (r *relay) armAlarm(time.Duration) {}
func (r *relay) drain() (bool, bool)    { return false, false }
func (r *relay) close()                 {}
