package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"shuttle/internal/fileutil"
)

func TestMoveTreeRenames(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	if err := os.MkdirAll(filepath.Join(src, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "nested", "file.bin"), []byte("payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dst := filepath.Join(root, "dst")
	if err := fileutil.MoveTree(src, dst); err != nil {
		t.Fatalf("MoveTree failed: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source still exists after move")
	}
	data, err := os.ReadFile(filepath.Join(dst, "nested", "file.bin"))
	if err != nil {
		t.Fatalf("read moved file: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected contents: %q", data)
	}
}

func TestDirSizeSumsFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a"), make([]byte, 100), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "b"), make([]byte, 50), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := fileutil.DirSize(root); got != 150 {
		t.Fatalf("DirSize = %d, want 150", got)
	}
}
