// Package storage defines the media library file-system abstraction.
package storage

import (
	"io"
	"time"
)

// FileMeta describes one media file in the library.
type FileMeta struct {
	Path     string // relative to the library root, slash separated
	Size     int64
	Checksum string
	ModTime  time.Time
}

// Provider is the interface for media library file operations.
type Provider interface {
	// List returns metadata for every media file under dir (relative to the library root).
	List(dir string) ([]FileMeta, error)
	// Stat returns metadata for a single file.
	Stat(path string) (FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Open opens the file at path for serving together with its metadata.
	// The checksum is not computed.
	Open(path string) (io.ReadSeekCloser, FileMeta, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// WriteFrom atomically streams r to path and returns the stored file's metadata.
	WriteFrom(path string, r io.Reader) (FileMeta, error)
	// Delete removes the file at path.
	Delete(path string) error
	// Exists reports whether path names an existing file.
	Exists(path string) bool
}
