// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness reactor behind the server event
// loop: epoll on Linux with level, edge and one-shot registration.
package reactor
