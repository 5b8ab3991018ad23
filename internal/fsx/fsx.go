// Package fsx holds the durable file primitives shared by every component
// that rewrites a document in place.
package fsx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// TempPrefix is the name prefix of the staging file WriteFileAtomic creates
// next to path.
func TempPrefix(path string) string {
	return "." + filepath.Base(path) + ".tmp-"
}

// Option customizes WriteFileAtomic.
type Option func(*options)

type options struct {
	check func(path string) error
}

// WithCheck vets the staging file before any data is written to it. A
// refusal removes the staging file and aborts the write.
func WithCheck(check func(path string) error) Option {
	return func(o *options) {
		o.check = check
	}
}

// WriteFileAtomic replaces path with data via a temp file in the same
// directory, fsync and rename. Readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsx: ensure dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, TempPrefix(path)+"*")
	if err != nil {
		return fmt.Errorf("fsx: create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if o.check != nil {
		if err := o.check(tmpName); err != nil {
			return fmt.Errorf("fsx: staging file for %s: %w", path, err)
		}
	}

	if err := writeAll(tmp, data); err != nil {
		return fmt.Errorf("fsx: write %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("fsx: chmod %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsx: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fsx: close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("fsx: replace %s: %w", path, err)
	}
	_ = syncDir(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// syncDir is best effort; directory fsync semantics vary by platform.
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
