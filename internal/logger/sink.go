// File: internal/logger/sink.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package logger builds the process logger: zerolog records written
// through a Sink that queues them for a background writer and rotates log
// files by day and by line count.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/momentics/hioload-httpd/pool"
)

// Sink is an io.Writer for log records. In async mode Write copies the
// record into a bounded queue drained by one goroutine; when the queue is
// full the caller writes synchronously instead.
type Sink struct {
	mu  sync.Mutex
	out io.Writer

	// file output
	dir      string
	base     string
	file     *os.File
	day      string
	part     int
	lines    int
	maxLines int
	now      func() time.Time

	queue *pool.BlockingQueue[[]byte]
	done  chan struct{}
}

// SinkOptions configure a Sink.
type SinkOptions struct {
	// Output is "stdout", "stderr" or a file path. File names get a
	// YYYY_MM_DD_ prefix.
	Output string
	// MaxLines starts a new file part after this many records; 0 disables.
	MaxLines int
	// QueueSize > 0 enables asynchronous writing.
	QueueSize int
}

// NewSink opens the configured output.
func NewSink(opts SinkOptions) (*Sink, error) {
	s := &Sink{maxLines: opts.MaxLines, now: time.Now}
	switch opts.Output {
	case "", "stderr":
		s.out = os.Stderr
	case "stdout":
		s.out = os.Stdout
	default:
		s.dir, s.base = filepath.Split(opts.Output)
		if s.dir == "" {
			s.dir = "."
		}
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return nil, fmt.Errorf("log directory %s: %w", s.dir, err)
		}
		if err := s.openLocked(s.now()); err != nil {
			return nil, err
		}
	}
	if opts.QueueSize > 0 {
		s.queue = pool.NewBlockingQueue[[]byte](opts.QueueSize)
		s.done = make(chan struct{})
		go s.drain()
	}
	return s, nil
}

// Write implements io.Writer.
func (s *Sink) Write(p []byte) (int, error) {
	if s.queue != nil {
		rec := make([]byte, len(p))
		copy(rec, p)
		if s.queue.Push(rec) {
			return len(p), nil
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(p)
}

// Pending returns the number of queued records.
func (s *Sink) Pending() int {
	if s.queue == nil {
		return 0
	}
	return s.queue.Len()
}

// FileName returns the current log file path, or "" for stdio output.
func (s *Sink) FileName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ""
	}
	return s.file.Name()
}

// Close drains queued records and closes the file.
func (s *Sink) Close() error {
	if s.queue != nil {
		s.queue.Close()
		<-s.done
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Sink) drain() {
	defer close(s.done)
	for {
		rec, ok := s.queue.Pop()
		if !ok {
			return
		}
		s.mu.Lock()
		_, _ = s.writeLocked(rec)
		s.mu.Unlock()
	}
}

func (s *Sink) writeLocked(p []byte) (int, error) {
	if s.base != "" {
		if err := s.rotateLocked(); err != nil {
			return 0, err
		}
		if s.file == nil {
			return 0, os.ErrClosed
		}
	}
	s.lines++
	return s.out.Write(p)
}

// rotateLocked switches files when the day changes or the current part is
// full.
func (s *Sink) rotateLocked() error {
	now := s.now()
	switch {
	case now.Format("2006_01_02") != s.day:
		s.part = 0
	case s.maxLines > 0 && s.lines >= s.maxLines:
		s.part++
	default:
		return nil
	}
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	return s.openLocked(now)
}

func (s *Sink) openLocked(now time.Time) error {
	s.day = now.Format("2006_01_02")
	name := s.day + "_" + s.base
	if s.part > 0 {
		name += "." + strconv.Itoa(s.part)
	}
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	s.file = f
	s.out = f
	s.lines = 0
	return nil
}
