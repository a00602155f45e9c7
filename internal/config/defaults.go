// File: internal/config/defaults.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Defaults.
const (
	DefaultListen          = "0.0.0.0:9006"
	DefaultBacklog         = 5
	DefaultMaxConnections  = 65536
	DefaultTimeSlot        = 5 * time.Second
	DefaultMaxEvents       = 10000
	DefaultShutdownTimeout = 10 * time.Second
	DefaultDocRoot         = "./root"
	DefaultDocument        = "index.html"
	DefaultReadBufferSize  = 2048
	DefaultWriteBufferSize = 1024
	DefaultWorkers         = 8
	DefaultWorkerQueue     = 10000
	DefaultSessionPoolSize = 8
	DefaultLogQueueSize    = 800
	DefaultLogMaxLines     = 800000
	DefaultMetricsListen   = "127.0.0.1:9090"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyHTTPDefaults(&cfg.HTTP)
	applyWorkersDefaults(&cfg.Workers)
	applyCredentialsDefaults(&cfg.Credentials)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultLogQueueSize
	}
	if cfg.MaxLines == 0 {
		cfg.MaxLines = DefaultLogMaxLines
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.Backlog == 0 {
		cfg.Backlog = DefaultBacklog
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.TimeSlot == 0 {
		cfg.TimeSlot = DefaultTimeSlot
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 3 * cfg.TimeSlot
	}
	if cfg.MaxEvents == 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyHTTPDefaults(cfg *HTTPConfig) {
	if cfg.DocRoot == "" {
		cfg.DocRoot = DefaultDocRoot
	}
	if cfg.DefaultDocument == "" {
		cfg.DefaultDocument = DefaultDocument
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if cfg.WriteBufferSize == 0 {
		cfg.WriteBufferSize = DefaultWriteBufferSize
	}
}

func applyWorkersDefaults(cfg *WorkersConfig) {
	if cfg.Count == 0 {
		cfg.Count = DefaultWorkers
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultWorkerQueue
	}
}

func applyCredentialsDefaults(cfg *CredentialsConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	cfg.Type = strings.ToLower(cfg.Type)
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultSessionPoolSize
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Listen == "" {
		cfg.Listen = DefaultMetricsListen
	}
}

// GetDefaultConfig returns a fully defaulted configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{Async: true},
		Server:  ServerConfig{ListenerEdgeTriggered: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
