// File: api/credentials.go
// Author: momentics <momentics@gmail.com>
//
// Credential-lookup contracts shared by the request resolver, the worker
// pool and the credential backends.

package api

// LookupResult is the outcome of a credential lookup.
type LookupResult int

const (
	LookupNotFound LookupResult = iota
	LookupMatch
	LookupMismatch
)

func (r LookupResult) String() string {
	switch r {
	case LookupMatch:
		return "match"
	case LookupMismatch:
		return "mismatch"
	default:
		return "not_found"
	}
}

// BackendSession is a pooled handle onto the persistent credential store.
type BackendSession interface {
	// ForEach calls fn for every stored user and password hash.
	ForEach(fn func(user string, hash []byte) error) error

	// Insert stores a new user; ErrAlreadyExists if the user is taken.
	Insert(user string, hash []byte) error

	// Alive reports whether the handle is still usable.
	Alive() bool

	Close() error
}

// Credentials is the shared user mapping consulted by the resolver.
type Credentials interface {
	Lookup(user, password string) LookupResult

	// Register inserts user through sess. It reports false without error
	// when the user already exists.
	Register(sess BackendSession, user, password string) (bool, error)
}
