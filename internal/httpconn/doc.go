// File: internal/httpconn/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package httpconn implements the per-connection HTTP/1.1 state machine:
// incremental request parsing over a fixed read buffer, request
// resolution against the document root and the credential store, response
// composition into a fixed write buffer and scatter writes of header and
// mapped file payload.
//
// A Conn is touched by at most one goroutine at a time. The reactor reads
// and writes; a worker parses and composes. Hand-off happens through
// one-shot re-arming. Workers never tear a connection down, they mark it
// and let the reactor evict it.
package httpconn
