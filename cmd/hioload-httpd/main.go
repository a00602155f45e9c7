// File: cmd/hioload-httpd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// hioload-httpd entry point: loads configuration, opens the credential
// store, and runs the reactor alongside the ops endpoint.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/internal/config"
	"github.com/momentics/hioload-httpd/internal/credential"
	"github.com/momentics/hioload-httpd/internal/filesrc"
	"github.com/momentics/hioload-httpd/internal/logger"
	"github.com/momentics/hioload-httpd/pool"
	"github.com/momentics/hioload-httpd/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	flags := pflag.NewFlagSet("hioload-httpd", pflag.ExitOnError)
	configPath := flags.StringP("config", "f", "", "configuration file (default "+config.GetDefaultConfigPath()+")")
	initConfig := flags.Bool("init-config", false, "write a default configuration file and exit")
	force := flags.Bool("force", false, "overwrite an existing file with --init-config")
	flags.StringP("listen", "l", config.DefaultListen, "address to serve HTTP on")
	flags.StringP("doc-root", "d", config.DefaultDocRoot, "directory files are served from")
	flags.String("log-level", "INFO", "log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	flags.IntP("workers", "t", config.DefaultWorkers, "worker goroutines")
	flags.String("metrics", config.DefaultMetricsListen, "ops endpoint address")
	_ = flags.Parse(os.Args[1:])

	if *initConfig {
		path, err := config.InitConfig(*configPath, *force)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("configuration written to", path)
		return
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log, sink, err := logger.New(logger.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		Async:     cfg.Logging.Async,
		QueueSize: cfg.Logging.QueueSize,
		MaxLines:  cfg.Logging.MaxLines,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer sink.Close()

	store, err := credential.OpenStore(cfg.Credentials.Type, cfg.Credentials.Path, log)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer store.Close()

	sessions, err := pool.NewResourcePool(cfg.Credentials.PoolSize, store.Open,
		func(s api.BackendSession) error { return s.Close() })
	if err != nil {
		return fmt.Errorf("open backend sessions: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := sessions.Close(ctx); err != nil {
			log.Error().Err(err).Msg("close backend sessions")
		}
	}()

	registry, err := loadRegistry(cfg, sessions, log)
	if err != nil {
		return err
	}

	metrics := control.Metrics(control.NopMetrics{})
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		reg := control.NewRegistry()
		metrics = control.NewPrometheusMetrics(reg)
		gatherer = reg
	}
	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)
	probes.RegisterProbe("backend.sessions_free", func() any { return sessions.Free() })
	probes.RegisterProbe("credentials.users", func() any { return registry.Len() })

	srv, err := server.New(serverConfig(cfg), filesrc.New(cfg.HTTP.DocRoot), registry, sessions,
		server.WithLogger(log),
		server.WithMetrics(metrics),
		server.WithDebugProbes(probes),
	)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return srv.Run(gctx)
	})
	if cfg.Metrics.Enabled {
		ep := control.NewEndpoint(cfg.Metrics.Listen, gatherer, probes, log)
		g.Go(func() error {
			return ep.Start(gctx)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadRegistry fills the in-memory user table from the store and registers
// configured users that are missing.
func loadRegistry(cfg *config.Config, sessions *pool.ResourcePool[api.BackendSession], log zerolog.Logger) (*credential.Registry, error) {
	registry := credential.NewRegistry(cfg.Credentials.BcryptCost)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := sessions.With(ctx, func(sess api.BackendSession) error {
		if err := registry.Load(sess); err != nil {
			return fmt.Errorf("load users: %w", err)
		}
		added, err := registry.Seed(sess, cfg.Credentials.Users)
		if err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
		log.Info().
			Str("store", cfg.Credentials.Type).
			Int("users", registry.Len()).
			Int("seeded", added).
			Msg("credentials loaded")
		return nil
	})
	return registry, err
}

func serverConfig(cfg *config.Config) *server.Config {
	return &server.Config{
		ListenAddr:            cfg.Server.Listen,
		Backlog:               cfg.Server.Backlog,
		ListenerEdgeTriggered: cfg.Server.ListenerEdgeTriggered,
		MaxConnections:        cfg.Server.MaxConnections,
		MaxEvents:             cfg.Server.MaxEvents,
		TimeSlot:              cfg.Server.TimeSlot,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Workers:               cfg.Workers.Count,
		QueueSize:             cfg.Workers.QueueSize,
		ReadBufferSize:        cfg.HTTP.ReadBufferSize,
		WriteBufferSize:       cfg.HTTP.WriteBufferSize,
		DefaultDocument:       cfg.HTTP.DefaultDocument,
		HandleSignals:         true,
	}
}
