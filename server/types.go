// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-httpd/api"
)

// ErrAlreadyRunning is returned by a second Run.
var ErrAlreadyRunning = errors.New("server already running")

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr            string        // TCP bind address, e.g. "0.0.0.0:9006"
	Backlog               int           // listen(2) backlog
	ListenerEdgeTriggered bool          // accept in a loop per notification
	MaxConnections        int           // connection ceiling
	MaxEvents             int           // readiness batch size
	TimeSlot              time.Duration // idle sweep tick
	IdleTimeout           time.Duration // evict after this long without activity
	Workers               int           // worker goroutines
	QueueSize             int           // pending ready connections
	ReadBufferSize        int           // per-connection request buffer
	WriteBufferSize       int           // per-connection header buffer
	DefaultDocument       string        // served for a bare "/"
	HandleSignals         bool          // relay SIGTERM/SIGINT into the loop
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:            "0.0.0.0:9006",
		Backlog:               5,
		ListenerEdgeTriggered: true,
		MaxConnections:        65536,
		MaxEvents:             10000,
		TimeSlot:              5 * time.Second,
		IdleTimeout:           15 * time.Second,
		Workers:               8,
		QueueSize:             10000,
		ReadBufferSize:        2048,
		WriteBufferSize:       1024,
		DefaultDocument:       "index.html",
		HandleSignals:         true,
	}
}

func (c *Config) validate() error {
	switch {
	case c.ListenAddr == "":
		return fmt.Errorf("listen address: %w", api.ErrInvalidArgument)
	case c.Backlog <= 0, c.MaxConnections <= 0, c.MaxEvents <= 0:
		return fmt.Errorf("backlog %d, max connections %d, max events %d: %w",
			c.Backlog, c.MaxConnections, c.MaxEvents, api.ErrInvalidArgument)
	case c.TimeSlot <= 0 || c.IdleTimeout < c.TimeSlot:
		return fmt.Errorf("time slot %s, idle timeout %s: %w", c.TimeSlot, c.IdleTimeout, api.ErrInvalidArgument)
	case c.ReadBufferSize <= 0 || c.WriteBufferSize <= 0:
		return fmt.Errorf("buffer sizes %d/%d: %w", c.ReadBufferSize, c.WriteBufferSize, api.ErrInvalidArgument)
	}
	return nil
}
