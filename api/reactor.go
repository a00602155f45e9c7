// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for the readiness-driven event reactor
// that multiplexes the listener, the control channel and client connections.

package api

// EventType is a bitmask of readiness conditions.
type EventType uint32

const (
	// EventRead indicates the descriptor is readable.
	EventRead EventType = 1 << iota
	// EventWrite indicates the descriptor is writable.
	EventWrite
	// EventError indicates an error condition on the descriptor.
	EventError
	// EventHangup indicates the peer closed its end (full or half close).
	EventHangup
)

// Has reports whether all bits of mask are set.
func (e EventType) Has(mask EventType) bool {
	return e&mask == mask
}

// Any reports whether at least one bit of mask is set.
func (e EventType) Any(mask EventType) bool {
	return e&mask != 0
}

// TriggerMode selects how a descriptor's readiness is reported.
type TriggerMode uint8

const (
	// LevelTriggered reports readiness for as long as it holds.
	LevelTriggered TriggerMode = iota
	// EdgeTriggered reports readiness transitions only.
	EdgeTriggered
	// OneShot is edge-triggered and disarms the descriptor after one
	// notification until Rearm is called.
	OneShot
)

// Event encapsulates the result of an OS-level readiness notification.
type Event struct {
	Fd     int
	Events EventType
}

// Rearmer re-enables a one-shot descriptor for the given readiness kind.
// Implemented by the reactor; used by whichever goroutine finished with a
// connection.
type Rearmer interface {
	Rearm(fd int, events EventType) error
}

// Reactor defines the readiness facility used by the event loop.
type Reactor interface {
	Rearmer

	// Add registers fd for the given events and trigger mode.
	Add(fd int, events EventType, mode TriggerMode) error

	// Remove deregisters fd.
	Remove(fd int) error

	// Wait blocks until at least one descriptor is ready or timeoutMs
	// elapses (negative blocks indefinitely). An interrupted wait returns
	// zero events and a nil error.
	Wait(events []Event, timeoutMs int) (int, error)

	// Close releases the facility.
	Close() error
}
