package spool

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCollisionSafeMoveNeverOverwrites(t *testing.T) {
	layout := NewLayout(t.TempDir())
	if err := layout.Ensure(); err != nil {
		t.Fatalf("Ensure layout: %v", err)
	}
	mgr := NewManager(layout, ".marker", nil)
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	mgr.now = func() time.Time { return frozen }

	root := layout.Root()
	dst := filepath.Join(root, "target")
	if err := os.MkdirAll(dst, 0o755); err != nil {
		t.Fatalf("mkdir dst: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dst, "original"), []byte("keep"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	makeSrc := func(name string) string {
		src := filepath.Join(root, name)
		if err := os.MkdirAll(src, 0o755); err != nil {
			t.Fatalf("mkdir src: %v", err)
		}
		if err := os.WriteFile(filepath.Join(src, "incoming"), []byte(name), 0o644); err != nil {
			t.Fatalf("write src: %v", err)
		}
		return src
	}

	if err := mgr.collisionSafeMove(makeSrc("first"), dst); err != nil {
		t.Fatalf("first collision move failed: %v", err)
	}
	suffixed := dst + "__" + FormatStamp(frozen)
	if _, err := os.Stat(filepath.Join(suffixed, "incoming")); err != nil {
		t.Fatalf("suffixed target missing: %v", err)
	}

	// Same frozen clock: a second collision gains a counter suffix.
	if err := mgr.collisionSafeMove(makeSrc("second"), dst); err != nil {
		t.Fatalf("second collision move failed: %v", err)
	}
	counterTarget := dst + "__" + FormatStamp(frozen) + "-1"
	if _, err := os.Stat(filepath.Join(counterTarget, "incoming")); err != nil {
		t.Fatalf("counter-suffixed target missing: %v", err)
	}

	// Original data untouched.
	data, err := os.ReadFile(filepath.Join(dst, "original"))
	if err != nil || string(data) != "keep" {
		t.Fatalf("existing data disturbed: %v %q", err, data)
	}
}

func TestPromoteSameSecondAdvancesStamp(t *testing.T) {
	layout := NewLayout(t.TempDir())
	if err := layout.Ensure(); err != nil {
		t.Fatalf("Ensure layout: %v", err)
	}
	mgr := NewManager(layout, ".marker", nil)
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	mgr.now = func() time.Time { return frozen }

	seed := func() {
		dir := filepath.Join(layout.Dir(StageIncoming), "alice", "set1")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "data.bin"), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	seed()
	first, _, err := mgr.Promote([]string{"alice"}, nil)
	if err != nil {
		t.Fatalf("first Promote failed: %v", err)
	}
	if first != FormatStamp(frozen) {
		t.Fatalf("first stamp = %s, want %s", first, FormatStamp(frozen))
	}

	// Same frozen clock: the batch stamp advances, the user name does not.
	seed()
	second, _, err := mgr.Promote([]string{"alice"}, nil)
	if err != nil {
		t.Fatalf("second Promote failed: %v", err)
	}
	if second != FormatStamp(frozen.Add(time.Second)) {
		t.Fatalf("second stamp = %s, want %s", second, FormatStamp(frozen.Add(time.Second)))
	}

	for _, stamp := range []string{first, second} {
		entries, err := os.ReadDir(filepath.Join(layout.Dir(StageProcessing), stamp))
		if err != nil {
			t.Fatalf("batch %s missing: %v", stamp, err)
		}
		if len(entries) != 1 || entries[0].Name() != "alice" {
			t.Fatalf("batch %s users = %v, want [alice]", stamp, entries)
		}
	}

	batch, err := mgr.OldestBatch()
	if err != nil {
		t.Fatalf("OldestBatch failed: %v", err)
	}
	if batch == nil || len(batch.Users) != 1 || batch.Users[0] != "alice" {
		t.Fatalf("oldest batch users = %+v, want [alice]", batch)
	}
}
