// File: internal/logger/logger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package logger

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configure the process logger.
type Options struct {
	Level     string
	Format    string // "text" or "json"
	Output    string
	Async     bool
	QueueSize int
	MaxLines  int
}

// New builds a zerolog.Logger over a Sink. Close the Sink on shutdown to
// flush queued records.
func New(opts Options) (zerolog.Logger, *Sink, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	queue := 0
	if opts.Async {
		queue = opts.QueueSize
		if queue <= 0 {
			queue = 1024
		}
	}
	sink, err := NewSink(SinkOptions{Output: opts.Output, MaxLines: opts.MaxLines, QueueSize: queue})
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	var w io.Writer = sink
	if !strings.EqualFold(opts.Format, "json") {
		w = zerolog.ConsoleWriter{Out: sink, NoColor: true, TimeFormat: time.RFC3339}
	}
	log := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return log, sink, nil
}

// ParseLevel maps a configured level name to a zerolog level. An empty
// name means info.
func ParseLevel(name string) (zerolog.Level, error) {
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", name, err)
	}
	return level, nil
}
