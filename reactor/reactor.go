// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral entry point for the readiness reactor.

package reactor

import "github.com/momentics/hioload-httpd/api"

// New constructs the platform reactor.
func New() (api.Reactor, error) {
	return newReactor()
}
