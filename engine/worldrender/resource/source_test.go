package resource

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalFileSourceOpensRelativePath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mesh.bin"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	source := NewLocalFileSource(dir)
	r, err := source.Open("mesh.bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q, want %q", data, "hello")
	}
}

func TestLocalFileSourceRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "assets")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	source := NewLocalFileSource(sub)
	if _, err := source.Open("../secret.bin"); err == nil {
		t.Fatal("expected an error for a path escaping the source root")
	}
}

func TestLocalFileSourceRejectsAbsolutePath(t *testing.T) {
	source := NewLocalFileSource(t.TempDir())
	if _, err := source.Open("/etc/passwd"); err == nil {
		t.Fatal("expected an error for an absolute path")
	}
}

func TestLocalFileSourceMissingFile(t *testing.T) {
	source := NewLocalFileSource(t.TempDir())
	if _, err := source.Open("does_not_exist.bin"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
