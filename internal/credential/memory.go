// File: internal/credential/memory.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package credential

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-httpd/api"
)

// MemoryStore keeps users in a map.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string][]byte)}
}

// Open returns a session onto the map.
func (s *MemoryStore) Open() (api.BackendSession, error) {
	return &memorySession{store: s}, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

type memorySession struct {
	store  *MemoryStore
	closed atomic.Bool
}

func (m *memorySession) ForEach(fn func(user string, hash []byte) error) error {
	if m.closed.Load() {
		return api.ErrConnectionClosed
	}
	m.store.mu.Lock()
	names := make([]string, 0, len(m.store.users))
	for name := range m.store.users {
		names = append(names, name)
	}
	hashes := make(map[string][]byte, len(names))
	for _, name := range names {
		hashes[name] = m.store.users[name]
	}
	m.store.mu.Unlock()

	sort.Strings(names)
	for _, name := range names {
		if err := fn(name, hashes[name]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memorySession) Insert(user string, hash []byte) error {
	if m.closed.Load() {
		return api.ErrConnectionClosed
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.users[user]; ok {
		return api.ErrAlreadyExists
	}
	m.store.users[user] = append([]byte(nil), hash...)
	return nil
}

func (m *memorySession) Alive() bool { return !m.closed.Load() }

func (m *memorySession) Close() error {
	m.closed.Store(true)
	return nil
}
