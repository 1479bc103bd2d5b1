package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"normalizer/internal/services"
)

func TestEnsureNonEmpty(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full.flac")
	empty := filepath.Join(dir, "empty.flac")
	if err := os.WriteFile(full, []byte("fLaC"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := EnsureNonEmpty(full); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, path := range []string{empty, filepath.Join(dir, "missing.flac"), dir} {
		if err := EnsureNonEmpty(path); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", path, err)
		}
	}
}

func TestRemoveBestEffort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.m4a")
	if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !RemoveBestEffort(path, nil) {
		t.Fatal("expected removal")
	}
	if Exists(path) {
		t.Fatal("file still present")
	}
	if !RemoveBestEffort(path, nil) {
		t.Fatal("a missing file counts as removed")
	}
}

func TestRemoveBestEffortSwallowsErrors(t *testing.T) {
	dir := t.TempDir()
	nonEmpty := filepath.Join(dir, "busy")
	if err := os.MkdirAll(filepath.Join(nonEmpty, "child"), 0o755); err != nil {
		t.Fatal(err)
	}
	if RemoveBestEffort(nonEmpty, nil) {
		t.Fatal("expected failure to be reported")
	}
	if !Exists(nonEmpty) {
		t.Fatal("directory should remain")
	}
}
