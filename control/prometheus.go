// control/prometheus.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus-backed Metrics on a private registry.

package control

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type promMetrics struct {
	accepted     prometheus.Counter
	rejected     *prometheus.CounterVec
	closed       *prometheus.CounterVec
	active       prometheus.Gauge
	requests     *prometheus.CounterVec
	duration     prometheus.Histogram
	bytesWritten prometheus.Counter
	sweeps       prometheus.Counter
	evicted      prometheus.Counter
	sweepTime    prometheus.Histogram
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewPrometheusMetrics registers the server metrics on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) Metrics {
	f := promauto.With(reg)
	return &promMetrics{
		accepted: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_connections_accepted_total",
			Help: "Total number of accepted client connections",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_connections_rejected_total",
			Help: "Connections refused or dropped for capacity",
		}, []string{"reason"}),
		closed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_connections_closed_total",
			Help: "Connections torn down, by reason",
		}, []string{"reason"}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_connections_active",
			Help: "Currently open client connections",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_requests_total",
			Help: "Responses composed, by status code",
		}, []string{"status"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hioload_request_processing_seconds",
			Help:    "Worker time spent parsing, resolving and composing a request",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		bytesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_bytes_written_total",
			Help: "Response bytes written to clients",
		}),
		sweeps: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_timer_sweeps_total",
			Help: "Idle timer sweeps run",
		}),
		evicted: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_timer_evictions_total",
			Help: "Connections evicted by idle timers",
		}),
		sweepTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hioload_timer_sweep_seconds",
			Help:    "Duration of idle timer sweeps",
			Buckets: prometheus.ExponentialBuckets(0.000005, 4, 8),
		}),
	}
}

func (m *promMetrics) ConnectionAccepted() { m.accepted.Inc() }

func (m *promMetrics) ConnectionRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *promMetrics) ConnectionClosed(reason string) {
	m.closed.WithLabelValues(reason).Inc()
}

func (m *promMetrics) SetActiveConnections(n int) { m.active.Set(float64(n)) }

func (m *promMetrics) RequestServed(status int, elapsed time.Duration) {
	m.requests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *promMetrics) BytesWritten(n int) {
	if n > 0 {
		m.bytesWritten.Add(float64(n))
	}
}

func (m *promMetrics) TimerSweep(evicted int, elapsed time.Duration) {
	m.sweeps.Inc()
	m.evicted.Add(float64(evicted))
	m.sweepTime.Observe(elapsed.Seconds())
}
