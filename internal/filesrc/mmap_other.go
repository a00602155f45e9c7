// File: internal/filesrc/mmap_other.go
//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package filesrc

import (
	"io"
	"os"

	"github.com/momentics/hioload-httpd/api"
)

type heapPayload []byte

func (p heapPayload) Bytes() []byte  { return p }
func (p heapPayload) Release() error { return nil }

func mapFile(f *os.File, size int64) (api.Payload, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, api.WrapError(api.ErrCodeInternal, "read "+f.Name(), err)
	}
	return heapPayload(buf), nil
}
