// File: internal/config/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package config loads the server configuration.
//
// Sources, highest precedence first:
//  1. CLI flags bound by the caller
//  2. Environment variables (HIOLOAD_*)
//  3. Configuration file (YAML)
//  4. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the complete server configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains listener, connection and timer settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// HTTP contains document root and buffer sizes
	HTTP HTTPConfig `mapstructure:"http" yaml:"http"`

	// Workers sizes the worker pool
	Workers WorkersConfig `mapstructure:"workers" yaml:"workers"`

	// Credentials selects the user store
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`

	// Metrics controls the ops HTTP endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=TRACE DEBUG INFO WARN ERROR trace debug info warn error"`

	// Format specifies the log output format
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`

	// Async queues records for a background writer
	Async bool `mapstructure:"async" yaml:"async"`

	// QueueSize bounds the async record queue
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size" validate:"gte=0"`

	// MaxLines splits log files after this many records (0 = never)
	MaxLines int `mapstructure:"max_lines" yaml:"max_lines" validate:"gte=0"`
}

// ServerConfig contains reactor settings.
type ServerConfig struct {
	// Listen is the TCP address to serve on
	Listen string `mapstructure:"listen" yaml:"listen" validate:"required,hostname_port"`

	// Backlog is the listen(2) backlog
	Backlog int `mapstructure:"backlog" yaml:"backlog" validate:"gt=0"`

	// MaxConnections is the connection ceiling; extra clients get "server busy"
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections" validate:"gt=0"`

	// TimeSlot is the sweep tick
	TimeSlot time.Duration `mapstructure:"time_slot" yaml:"time_slot" validate:"gt=0"`

	// IdleTimeout evicts connections without activity
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gt=0"`

	// MaxEvents is the readiness batch size
	MaxEvents int `mapstructure:"max_events" yaml:"max_events" validate:"gt=0"`

	// ListenerEdgeTriggered accepts in a loop per notification
	ListenerEdgeTriggered bool `mapstructure:"listener_edge_triggered" yaml:"listener_edge_triggered"`

	// ShutdownTimeout bounds draining of workers and backend sessions
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// HTTPConfig contains request handling settings.
type HTTPConfig struct {
	// DocRoot is the directory files are served from
	DocRoot string `mapstructure:"doc_root" yaml:"doc_root" validate:"required"`

	// DefaultDocument replaces a bare "/" target
	DefaultDocument string `mapstructure:"default_document" yaml:"default_document" validate:"required,excludes=/"`

	// ReadBufferSize bounds one request
	ReadBufferSize int `mapstructure:"read_buffer_size" yaml:"read_buffer_size" validate:"gte=256"`

	// WriteBufferSize bounds response headers and error bodies
	WriteBufferSize int `mapstructure:"write_buffer_size" yaml:"write_buffer_size" validate:"gte=256"`
}

// WorkersConfig sizes the worker pool.
type WorkersConfig struct {
	Count     int `mapstructure:"count" yaml:"count" validate:"gt=0"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size" validate:"gt=0"`
}

// CredentialsConfig selects the user store.
type CredentialsConfig struct {
	// Type is memory or badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Path is the badger directory
	Path string `mapstructure:"path" yaml:"path"`

	// PoolSize is the number of pooled backend sessions
	PoolSize int `mapstructure:"pool_size" yaml:"pool_size" validate:"gt=0"`

	// BcryptCost is the password hashing cost
	BcryptCost int `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost" validate:"gte=4,lte=31"`

	// Users are registered at startup when missing
	Users map[string]string `mapstructure:"users" yaml:"users,omitempty"`
}

// MetricsConfig controls the ops endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen" validate:"omitempty,hostname_port"`
}

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"listen":    "server.listen",
	"doc-root":  "http.doc_root",
	"log-level": "logging.level",
	"workers":   "workers.count",
	"metrics":   "metrics.listen",
}

// Load loads configuration from flags, environment, file and defaults.
// configPath may be empty to use the default location; flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)
	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures env support, boolean defaults and the file search.
func setupViper(v *viper.Viper, configPath string) {
	// Example: HIOLOAD_SERVER_LISTEN=0.0.0.0:9006
	v.SetEnvPrefix("HIOLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans cannot be defaulted from their zero value.
	v.SetDefault("logging.async", true)
	v.SetDefault("server.listener_edge_triggered", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/hioload-httpd, ~/.config/hioload-httpd
// or "." as a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hioload-httpd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "hioload-httpd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
