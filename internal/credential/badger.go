// File: internal/credential/badger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package credential

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/momentics/hioload-httpd/api"
	"github.com/rs/zerolog"
)

const userPrefix = "user/"

func userKey(name string) []byte {
	return []byte(userPrefix + name)
}

// BadgerStore persists users in an embedded BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the database directory at dir.
func OpenBadgerStore(dir string, log zerolog.Logger) (*BadgerStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("badger credential store needs a path: %w", api.ErrInvalidArgument)
	}
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{log: log.With().Str("component", "badger").Logger()}).
		WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// Open returns a session sharing the database handle.
func (s *BadgerStore) Open() (api.BackendSession, error) {
	if s.db.IsClosed() {
		return nil, api.ErrConnectionClosed
	}
	return &badgerSession{db: s.db}, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type badgerSession struct {
	db     *badger.DB
	closed atomic.Bool
}

func (b *badgerSession) ForEach(fn func(user string, hash []byte) error) error {
	if !b.Alive() {
		return api.ErrConnectionClosed
	}
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(userPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), userPrefix)
			hash, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read user %q: %w", name, err)
			}
			if err := fn(name, hash); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *badgerSession) Insert(user string, hash []byte) error {
	if !b.Alive() {
		return api.ErrConnectionClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(user))
		if err == nil {
			return api.ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("lookup user %q: %w", user, err)
		}
		return txn.Set(userKey(user), hash)
	})
}

func (b *badgerSession) Alive() bool {
	return !b.closed.Load() && !b.db.IsClosed()
}

func (b *badgerSession) Close() error {
	b.closed.Store(true)
	return nil
}

// badgerLogger routes badger's printf logging into zerolog. Badger's
// info chatter is demoted to debug.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(strings.TrimSpace(format), args...)
}
