// File: api/source.go
// Author: momentics <momentics@gmail.com>
//
// Byte-source contract: metadata and zero-copy byte ranges for files
// served from the document root.

package api

import "io/fs"

// FileInfo is the subset of file metadata the request resolver needs.
type FileInfo struct {
	Size int64
	Mode fs.FileMode
	Dir  bool
}

// WorldReadable reports whether "other" has read permission.
func (fi FileInfo) WorldReadable() bool {
	return fi.Mode.Perm()&0o004 != 0
}

// Payload is a borrowed byte range. Bytes stays valid until Release.
type Payload interface {
	Bytes() []byte
	Release() error
}

// ByteSource resolves paths to metadata and payloads.
type ByteSource interface {
	// Stat returns metadata for path, or ErrNotFound / ErrForbidden.
	Stat(path string) (FileInfo, error)

	// Open returns a read-only view of the first size bytes of path.
	Open(path string, size int64) (Payload, error)
}
