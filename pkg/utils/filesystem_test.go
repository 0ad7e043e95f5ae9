package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureParentDirCreatesMissingDirs(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "logs", "nested", ".log.jsonl")

	if err := EnsureParentDir(target); err != nil {
		t.Fatalf("EnsureParentDir() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(base, "logs", "nested"))
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected a directory")
	}
}

func TestEnsureParentDirRelativeNoOp(t *testing.T) {
	if err := EnsureParentDir("file.jsonl"); err != nil {
		t.Fatalf("EnsureParentDir() error = %v", err)
	}
}
