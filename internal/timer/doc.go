// File: internal/timer/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package timer keeps the idle-expiry timers of live connections in a
// binary min-heap. Entries are removed structurally, so a sweep only ever
// sees timers that are still wanted.
package timer
