// File: internal/filesrc/source.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package filesrc serves files from a document root as read-only memory
// mappings, so response payloads are written straight from the page cache.
package filesrc

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/momentics/hioload-httpd/api"
)

// Source resolves request paths under a document root.
type Source struct {
	root string
}

var _ api.ByteSource = (*Source)(nil)

// New returns a Source rooted at root.
func New(root string) *Source {
	return &Source{root: filepath.Clean(root)}
}

// Root returns the document root.
func (s *Source) Root() string { return s.root }

// Path maps a slash-separated request path to a file under the root.
// Dot-dot segments never climb above the root.
func (s *Source) Path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+name)))
}

// Stat returns metadata for name.
func (s *Source) Stat(name string) (api.FileInfo, error) {
	fi, err := os.Stat(s.Path(name))
	if err != nil {
		return api.FileInfo{}, mapErr(name, err)
	}
	return api.FileInfo{Size: fi.Size(), Mode: fi.Mode(), Dir: fi.IsDir()}, nil
}

// Open maps the first size bytes of name read-only.
func (s *Source) Open(name string, size int64) (api.Payload, error) {
	if size <= 0 {
		return emptyPayload{}, nil
	}
	f, err := os.Open(s.Path(name))
	if err != nil {
		return nil, mapErr(name, err)
	}
	defer f.Close()
	return mapFile(f, size)
}

func mapErr(name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", name, api.ErrNotFound)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s: %w", name, api.ErrForbidden)
	default:
		return api.WrapError(api.ErrCodeInternal, "stat "+name, err)
	}
}

type emptyPayload struct{}

func (emptyPayload) Bytes() []byte  { return nil }
func (emptyPayload) Release() error { return nil }
