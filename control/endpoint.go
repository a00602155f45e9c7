// control/endpoint.go
// Author: momentics <momentics@gmail.com>
//
// Ops HTTP endpoint exposing Prometheus metrics and debug probes.

package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ShutdownTimeout bounds graceful shutdown of the ops endpoint.
const ShutdownTimeout = 5 * time.Second

// Endpoint serves GET /metrics and GET /debug/state.
type Endpoint struct {
	server       *http.Server
	log          zerolog.Logger
	shutdownOnce sync.Once

	mu   sync.Mutex
	addr net.Addr
}

// NewEndpoint builds a stopped endpoint on addr. A nil gatherer serves 503
// on /metrics.
func NewEndpoint(addr string, gatherer prometheus.Gatherer, probes *DebugProbes, log zerolog.Logger) *Endpoint {
	mux := http.NewServeMux()
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintln(w, "metrics collection is disabled")
		})
	}
	if probes != nil {
		mux.Handle("/debug/state", probes)
	}

	return &Endpoint{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: log.With().Str("component", "ops").Logger(),
	}
}

// Addr returns the bound address once Start is listening, nil before.
func (e *Endpoint) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addr
}

// Start listens and serves until ctx is cancelled or serving fails.
// Cancellation triggers a graceful shutdown and a nil return.
func (e *Endpoint) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.server.Addr)
	if err != nil {
		return fmt.Errorf("ops endpoint listen %s: %w", e.server.Addr, err)
	}
	e.mu.Lock()
	e.addr = ln.Addr()
	e.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		e.log.Info().Str("addr", ln.Addr().String()).Msg("ops endpoint listening")
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return e.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("ops endpoint failed: %w", err)
	}
}

// Stop shuts the endpoint down. Safe to call more than once.
func (e *Endpoint) Stop(ctx context.Context) error {
	var shutdownErr error
	e.shutdownOnce.Do(func() {
		if err := e.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("ops endpoint shutdown: %w", err)
			e.log.Error().Err(err).Msg("ops endpoint shutdown")
			return
		}
		e.log.Info().Msg("ops endpoint stopped")
	})
	return shutdownErr
}
