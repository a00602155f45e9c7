// File: internal/credential/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package credential

import (
	"errors"
	"fmt"
	"sync"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/crypto/bcrypt"
)

// Registry is the in-memory user table. Lookups take the read lock.
// Registrations are serialized by wmu and persist before the table write
// lock is taken, so a slow backend insert never blocks a lookup.
type Registry struct {
	wmu   sync.Mutex
	mu    sync.RWMutex
	users map[string][]byte
	cost  int
}

var _ api.Credentials = (*Registry)(nil)

// NewRegistry returns an empty registry hashing with the given bcrypt cost.
// Out-of-range costs fall back to bcrypt.DefaultCost.
func NewRegistry(cost int) *Registry {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Registry{users: make(map[string][]byte), cost: cost}
}

// Load copies every user from the store into the registry.
func (r *Registry) Load(sess api.BackendSession) error {
	loaded := make(map[string][]byte)
	err := sess.ForEach(func(user string, hash []byte) error {
		loaded[user] = hash
		return nil
	})
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	r.mu.Lock()
	for user, hash := range loaded {
		r.users[user] = hash
	}
	r.mu.Unlock()
	return nil
}

// Lookup checks password against the stored hash for user.
func (r *Registry) Lookup(user, password string) api.LookupResult {
	r.mu.RLock()
	hash, ok := r.users[user]
	r.mu.RUnlock()
	if !ok {
		return api.LookupNotFound
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return api.LookupMismatch
	}
	return api.LookupMatch
}

// Register persists user through sess and adds it to the table. It
// returns false when the user already exists in either place.
func (r *Registry) Register(sess api.BackendSession, user, password string) (bool, error) {
	r.mu.RLock()
	_, exists := r.users[user]
	r.mu.RUnlock()
	if exists {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	r.wmu.Lock()
	defer r.wmu.Unlock()
	r.mu.RLock()
	_, exists = r.users[user]
	r.mu.RUnlock()
	if exists {
		return false, nil
	}
	if err := sess.Insert(user, hash); err != nil {
		if errors.Is(err, api.ErrAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("insert user %q: %w", user, err)
	}
	r.mu.Lock()
	r.users[user] = hash
	r.mu.Unlock()
	return true, nil
}

// Seed registers users that are not yet known. Existing users keep their
// stored password.
func (r *Registry) Seed(sess api.BackendSession, users map[string]string) (int, error) {
	added := 0
	for user, password := range users {
		ok, err := r.Register(sess, user, password)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// Len returns the number of known users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
