package storage

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/fractal/internal/checksum"
	"github.com/starford/fractal/internal/models"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the library directory
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute library directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a relative path against the library root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes library root: %s", rel)
	}
	return abs, nil
}

func (f *FS) rel(abs string) string {
	r, _ := filepath.Rel(f.root, abs)
	return filepath.ToSlash(r)
}

// List walks dir (relative to root) and returns metadata for every media file.
// Hidden files and directories are skipped.
func (f *FS) List(dir string) ([]FileMeta, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []FileMeta
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		hidden := strings.HasPrefix(d.Name(), ".") && p != base
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !models.IsMedia(d.Name()) {
			return nil
		}
		meta, err := f.statAbs(p, true)
		if err != nil {
			return err
		}
		out = append(out, meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Stat returns metadata including the content checksum.
func (f *FS) Stat(path string) (FileMeta, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return FileMeta{}, err
	}
	return f.statAbs(abs, true)
}

func (f *FS) statAbs(abs string, withSum bool) (FileMeta, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return FileMeta{}, fmt.Errorf("storage: stat %s: %w", f.rel(abs), err)
	}
	if info.IsDir() {
		return FileMeta{}, fmt.Errorf("storage: %s is a directory", f.rel(abs))
	}
	meta := FileMeta{Path: f.rel(abs), Size: info.Size(), ModTime: info.ModTime()}
	if !withSum {
		return meta, nil
	}
	file, err := os.Open(abs)
	if err != nil {
		return FileMeta{}, fmt.Errorf("storage: open %s: %w", meta.Path, err)
	}
	defer file.Close()
	if meta.Checksum, _, err = checksum.SumReader(file); err != nil {
		return FileMeta{}, err
	}
	return meta, nil
}

// Read returns the raw bytes of a library file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Open opens a library file for serving.
func (f *FS) Open(path string) (io.ReadSeekCloser, FileMeta, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, FileMeta{}, err
	}
	meta, err := f.statAbs(abs, false)
	if err != nil {
		return nil, FileMeta{}, err
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, FileMeta{}, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return file, meta, nil
}

// Exists reports whether path is an existing regular file.
func (f *FS) Exists(path string) bool {
	abs, err := f.safePath(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && !info.IsDir()
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	_, err := f.WriteFrom(path, bytes.NewReader(content))
	return err
}

// WriteFrom atomically streams r to path: tmp file → fsync → rename. The
// checksum is computed while writing.
func (f *FS) WriteFrom(path string, r io.Reader) (FileMeta, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return FileMeta{}, err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return FileMeta{}, fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".fractal-tmp-*")
	if err != nil {
		return FileMeta{}, fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	sum, n, err := checksum.SumReader(io.TeeReader(r, tmp))
	if err != nil {
		return FileMeta{}, fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return FileMeta{}, fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return FileMeta{}, fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return FileMeta{}, fmt.Errorf("storage: rename: %w", err)
	}
	success = true

	meta := FileMeta{Path: f.rel(abs), Size: n, Checksum: sum}
	if info, err := os.Stat(abs); err == nil {
		meta.ModTime = info.ModTime()
	}
	return meta, nil
}

// Delete removes a file from the library.
func (f *FS) Delete(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}
