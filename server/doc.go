// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-threaded readiness reactor for hioload-httpd. One goroutine owns
// the listener, the control channel, the connection table and the idle
// timer heap; a fixed worker pool parses requests and composes responses.
// Every connection is torn down on the reactor goroutine, exactly once.
package server
