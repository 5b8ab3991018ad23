package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicCreatesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")
	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("content = %q, want second", data)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestWriteFileAtomicChecksStagingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.go")
	refused := errors.New("refused")
	var staged string
	err := WriteFileAtomic(path, []byte("package catalog\n"), 0o644, WithCheck(func(p string) error {
		staged = p
		return refused
	}))
	if !errors.Is(err, refused) {
		t.Fatalf("expected the check error, got %v", err)
	}
	if filepath.Dir(staged) != dir || !strings.HasPrefix(filepath.Base(staged), TempPrefix(path)) {
		t.Fatalf("check saw %q, want a staging file next to %s", staged, path)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("refused write left %d entries behind", len(entries))
	}
}
