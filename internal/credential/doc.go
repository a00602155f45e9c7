// File: internal/credential/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package credential holds the user table consulted by login and
// registration requests.
//
// The Registry keeps bcrypt password hashes in memory behind an RWMutex.
// A Store persists them; its sessions are the pooled backend handles
// checked out by workers for registration. Two stores exist:
//
//   - memory: a process-local map, lost on exit
//   - badger: an embedded BadgerDB directory, keys "user/<name>"
package credential
