// File: internal/credential/registry_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package credential

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegistryLookupAndRegister(t *testing.T) {
	store := NewMemoryStore()
	sess, err := store.Open()
	require.NoError(t, err)
	reg := NewRegistry(bcrypt.MinCost)

	assert.Equal(t, api.LookupNotFound, reg.Lookup("alice", "pw"))

	ok, err := reg.Register(sess, "alice", "pw")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, api.LookupMatch, reg.Lookup("alice", "pw"))
	assert.Equal(t, api.LookupMismatch, reg.Lookup("alice", "nope"))

	ok, err = reg.Register(sess, "alice", "other")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, api.LookupMatch, reg.Lookup("alice", "pw"))
}

func TestRegistryStoresHashesNotPasswords(t *testing.T) {
	store := NewMemoryStore()
	sess, _ := store.Open()
	reg := NewRegistry(bcrypt.MinCost)
	_, err := reg.Register(sess, "bob", "hunter2")
	require.NoError(t, err)

	require.NoError(t, sess.ForEach(func(user string, hash []byte) error {
		assert.Equal(t, "bob", user)
		assert.NotEqual(t, "hunter2", string(hash))
		assert.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte("hunter2")))
		return nil
	}))
}

func TestRegistryLoadFromStore(t *testing.T) {
	store := NewMemoryStore()
	sess, _ := store.Open()
	first := NewRegistry(bcrypt.MinCost)
	_, err := first.Seed(sess, map[string]string{"a": "1", "b": "2"})
	require.NoError(t, err)

	second := NewRegistry(bcrypt.MinCost)
	require.NoError(t, second.Load(sess))
	assert.Equal(t, 2, second.Len())
	assert.Equal(t, api.LookupMatch, second.Lookup("b", "2"))

	// The store already has "a"; a fresh registry must not report success.
	ok, err := NewRegistry(bcrypt.MinCost).Register(sess, "a", "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

type brokenSession struct{ memorySession }

func (*brokenSession) Insert(string, []byte) error { return errors.New("write failed") }

func TestRegistryInsertFailureLeavesTableUnchanged(t *testing.T) {
	reg := NewRegistry(bcrypt.MinCost)
	ok, err := reg.Register(&brokenSession{}, "carol", "pw")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, api.LookupNotFound, reg.Lookup("carol", "pw"))
}

func TestRegistryConcurrentRegisterSameUser(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(bcrypt.MinCost)
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, _ := store.Open()
			ok, err := reg.Register(sess, "dup", "pw")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

// stalledSession holds Insert until release is closed.
type stalledSession struct {
	memorySession
	entered chan struct{}
	release chan struct{}
}

func (s *stalledSession) Insert(user string, hash []byte) error {
	close(s.entered)
	<-s.release
	return s.memorySession.Insert(user, hash)
}

func TestRegistryLookupNotBlockedBySlowInsert(t *testing.T) {
	store := NewMemoryStore()
	sess, err := store.Open()
	require.NoError(t, err)
	reg := NewRegistry(bcrypt.MinCost)
	_, err = reg.Register(sess, "alice", "secret")
	require.NoError(t, err)

	slow := &stalledSession{
		memorySession: memorySession{store: store},
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	registered := make(chan bool, 1)
	go func() {
		ok, err := reg.Register(slow, "bob", "pw")
		assert.NoError(t, err)
		registered <- ok
	}()
	<-slow.entered

	looked := make(chan api.LookupResult, 1)
	go func() { looked <- reg.Lookup("alice", "secret") }()
	select {
	case res := <-looked:
		assert.Equal(t, api.LookupMatch, res)
	case <-time.After(2 * time.Second):
		t.Fatal("lookup waited on a pending insert")
	}
	assert.Equal(t, api.LookupNotFound, reg.Lookup("bob", "pw"))

	close(slow.release)
	assert.True(t, <-registered)
	assert.Equal(t, api.LookupMatch, reg.Lookup("bob", "pw"))
}

func TestMemorySessionClosed(t *testing.T) {
	sess, _ := NewMemoryStore().Open()
	require.NoError(t, sess.Close())
	assert.False(t, sess.Alive())
	assert.ErrorIs(t, sess.Insert("x", nil), api.ErrConnectionClosed)
}

func TestOpenStoreKinds(t *testing.T) {
	s, err := OpenStore("memory", "", zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = OpenStore("mysql", "", zerolog.Nop())
	assert.ErrorIs(t, err, api.ErrNotSupported)

	_, err = OpenStore("badger", "", zerolog.Nop())
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
