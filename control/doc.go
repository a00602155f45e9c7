// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection layer for hioload-httpd.
//
// Provides:
//   - the Metrics contract with Prometheus and no-op implementations
//   - named debug probes with a JSON state dump
//   - an ops HTTP endpoint serving /metrics and /debug/state
//
// The ops endpoint runs on net/http and is separate from the reactor that
// serves client traffic.
package control
