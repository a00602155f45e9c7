// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker pool for hioload-httpd. A fixed set of goroutines consumes ready
// connections from one bounded queue; the reactor submits without ever
// blocking and treats a full queue as a rejected connection.
package concurrency
