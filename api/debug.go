// Package api
// Author: momentics
//
// Live debug introspection contract.

package api

// Debug exposes named runtime probes.
type Debug interface {
	// DumpState evaluates every probe.
	DumpState() map[string]any

	// RegisterProbe adds or replaces a named probe.
	RegisterProbe(name string, fn func() any)
}
