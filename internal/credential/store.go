// File: internal/credential/store.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package credential

import (
	"fmt"
	"strings"

	"github.com/momentics/hioload-httpd/api"
	"github.com/rs/zerolog"
)

// Store type names accepted by OpenStore.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// Store hands out sessions onto a persistent user table.
type Store interface {
	// Open returns a new session. Sessions are safe to use from one
	// goroutine at a time.
	Open() (api.BackendSession, error)

	// Close releases the store. Sessions must be closed first.
	Close() error
}

// OpenStore opens the store named by kind. path is only used by badger.
func OpenStore(kind, path string, log zerolog.Logger) (Store, error) {
	switch strings.ToLower(kind) {
	case StoreMemory, "":
		return NewMemoryStore(), nil
	case StoreBadger:
		return OpenBadgerStore(path, log)
	default:
		return nil, fmt.Errorf("credential store %q: %w", kind, api.ErrNotSupported)
	}
}
