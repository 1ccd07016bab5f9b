package sha256

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const helloWorld = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("hello world"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if got != helloWorld {
		t.Fatalf("expected %s, got %s", helloWorld, got)
	}
	streamed, err := h.HashReader(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("HashReader() error = %v", err)
	}
	if streamed != got {
		t.Fatalf("expected stream digest to match, got %s vs %s", streamed, got)
	}
}

func TestHasherHashFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "projects.csv")
	if err := os.WriteFile(path, []byte("hello world"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	got, err := New().HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	if got != helloWorld {
		t.Fatalf("expected %s, got %s", helloWorld, got)
	}

	if _, err := New().HashFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
