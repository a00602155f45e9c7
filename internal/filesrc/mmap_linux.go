// File: internal/filesrc/mmap_linux.go
//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package filesrc

import (
	"fmt"
	"os"
	"sync"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

// mapping is a private read-only view of a file. Release unmaps once.
type mapping struct {
	data []byte
	once sync.Once
	err  error
}

func mapFile(f *os.File, size int64) (api.Payload, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, api.WrapError(api.ErrCodeInternal, fmt.Sprintf("mmap %s", f.Name()), err)
	}
	return &mapping{data: data}, nil
}

func (m *mapping) Bytes() []byte { return m.data }

func (m *mapping) Release() error {
	m.once.Do(func() {
		m.err = unix.Munmap(m.data)
		m.data = nil
	})
	return m.err
}
