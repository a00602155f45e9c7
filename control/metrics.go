// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Metrics contract for the reactor and workers, plus the no-op variant
// used when metrics are disabled.

package control

import "time"

// Close reasons reported to ConnectionClosed.
const (
	ClosePeer     = "peer"
	CloseIdle     = "idle"
	CloseError    = "error"
	CloseDone     = "done"
	CloseShutdown = "shutdown"
)

// Rejection reasons reported to ConnectionRejected.
const (
	RejectBusy      = "busy"
	RejectQueueFull = "queue_full"
)

// Metrics records server events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ConnectionAccepted()
	ConnectionRejected(reason string)
	ConnectionClosed(reason string)
	SetActiveConnections(n int)
	RequestServed(status int, elapsed time.Duration)
	BytesWritten(n int)
	TimerSweep(evicted int, elapsed time.Duration)
}

// NopMetrics discards everything.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) ConnectionAccepted()              {}
func (NopMetrics) ConnectionRejected(string)        {}
func (NopMetrics) ConnectionClosed(string)          {}
func (NopMetrics) SetActiveConnections(int)         {}
func (NopMetrics) RequestServed(int, time.Duration) {}
func (NopMetrics) BytesWritten(int)                 {}
func (NopMetrics) TimerSweep(int, time.Duration)    {}
