// File: server/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/control"
	"github.com/rs/zerolog"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(log zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// WithMetrics routes connection and request events to m.
func WithMetrics(m control.Metrics) ServerOption {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithDebugProbes registers the server's probes on dp.
func WithDebugProbes(dp api.Debug) ServerOption {
	return func(s *Server) {
		s.probes = dp
	}
}
