package spool_test

import (
	"os"
	"path/filepath"
	"testing"

	"shuttle/internal/spool"
)

const marker = ".shuttle-empty"

func newTestManager(t *testing.T) (*spool.Manager, spool.Layout) {
	t.Helper()
	layout := spool.NewLayout(t.TempDir())
	if err := layout.Ensure(); err != nil {
		t.Fatalf("Ensure layout: %v", err)
	}
	return spool.NewManager(layout, marker, nil), layout
}

func seedUser(t *testing.T, layout spool.Layout, user string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(layout.Dir(spool.StageIncoming), user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir user: %v", err)
	}
	for name, contents := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestScanIncomingSkipsMarkerOnly(t *testing.T) {
	mgr, layout := newTestManager(t)
	seedUser(t, layout, "alice", map[string]string{marker: ""})
	seedUser(t, layout, "bob", nil)
	seedUser(t, layout, "carol", map[string]string{marker: "", "report.pdf": "data"})

	ready, err := mgr.ScanIncoming()
	if err != nil {
		t.Fatalf("ScanIncoming failed: %v", err)
	}
	if len(ready) != 1 || ready[0] != "carol" {
		t.Fatalf("ready = %v, want [carol]", ready)
	}
}

func TestScanIncomingRecreatesMissingMarker(t *testing.T) {
	mgr, layout := newTestManager(t)
	seedUser(t, layout, "dave", nil)

	if _, err := mgr.ScanIncoming(); err != nil {
		t.Fatalf("ScanIncoming failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(layout.Dir(spool.StageIncoming), "dave", marker)); err != nil {
		t.Fatalf("marker not recreated: %v", err)
	}
}

func TestPromoteMovesTreeAndRecreatesIncoming(t *testing.T) {
	mgr, layout := newTestManager(t)
	seedUser(t, layout, "erin", map[string]string{
		marker:            "",
		"set1/data.bin":   "payload",
		"set1/extra.txt":  "x",
		"looseledger.csv": "rows",
	})

	stamp, unmatched, err := mgr.Promote([]string{"erin"}, func(string) bool { return true })
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	if len(unmatched) != 0 {
		t.Fatalf("unexpected unmatched users: %v", unmatched)
	}

	promoted := filepath.Join(layout.Dir(spool.StageProcessing), stamp, "erin")
	if _, err := os.Stat(filepath.Join(promoted, "set1", "data.bin")); err != nil {
		t.Fatalf("promoted tree missing data: %v", err)
	}
	// Stray top-level file collected into orphaned/ before the move.
	if _, err := os.Stat(filepath.Join(promoted, "orphaned", "looseledger.csv")); err != nil {
		t.Fatalf("orphan not collected: %v", err)
	}

	// Incoming directory recreated empty with marker.
	incoming := filepath.Join(layout.Dir(spool.StageIncoming), "erin")
	entries, err := os.ReadDir(incoming)
	if err != nil {
		t.Fatalf("incoming gone: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != marker {
		t.Fatalf("incoming not reset to marker-only: %v", entries)
	}
}

func TestPromoteRoutesUnmatchedUsers(t *testing.T) {
	mgr, layout := newTestManager(t)
	seedUser(t, layout, "ghost", map[string]string{"file.bin": "data"})

	stamp, unmatched, err := mgr.Promote([]string{"ghost"}, func(string) bool { return false })
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	if len(unmatched) != 1 || unmatched[0] != "ghost" {
		t.Fatalf("unmatched = %v, want [ghost]", unmatched)
	}
	if _, err := os.Stat(filepath.Join(layout.Dir(spool.StageUnmatched), stamp, "ghost", "orphaned", "file.bin")); err != nil {
		t.Fatalf("unmatched tree not in Unmatched stage: %v", err)
	}
	if _, err := os.Stat(filepath.Join(layout.Dir(spool.StageProcessing), stamp)); !os.IsNotExist(err) {
		t.Fatal("unmatched user must not create a Processing batch")
	}
}

func TestOldestBatchOrdering(t *testing.T) {
	mgr, layout := newTestManager(t)
	processing := layout.Dir(spool.StageProcessing)
	for _, batch := range []string{"2024-03-01__10-00-00", "2024-01-15__08-30-00", "zz-not-a-stamp"} {
		dir := filepath.Join(processing, batch, "user1")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	batch, err := mgr.OldestBatch()
	if err != nil {
		t.Fatalf("OldestBatch failed: %v", err)
	}
	if batch == nil || batch.Stamp != "2024-01-15__08-30-00" {
		t.Fatalf("OldestBatch = %+v, want 2024-01-15__08-30-00", batch)
	}
	if len(batch.Users) != 1 || batch.Users[0] != "user1" {
		t.Fatalf("unexpected users: %v", batch.Users)
	}
}

func TestOldestBatchRemovesEmptyBatches(t *testing.T) {
	mgr, layout := newTestManager(t)
	processing := layout.Dir(spool.StageProcessing)
	empty := filepath.Join(processing, "2024-01-01__00-00-00")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	full := filepath.Join(processing, "2024-02-01__00-00-00", "frank")
	if err := os.MkdirAll(full, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	batch, err := mgr.OldestBatch()
	if err != nil {
		t.Fatalf("OldestBatch failed: %v", err)
	}
	if batch == nil || batch.Stamp != "2024-02-01__00-00-00" {
		t.Fatalf("OldestBatch = %+v", batch)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Fatal("empty batch directory was not removed")
	}
}

func TestOldestBatchEmptyQueue(t *testing.T) {
	mgr, _ := newTestManager(t)
	batch, err := mgr.OldestBatch()
	if err != nil {
		t.Fatalf("OldestBatch failed: %v", err)
	}
	if batch != nil {
		t.Fatalf("expected nil batch, got %+v", batch)
	}
}

func TestFinalizeMovesToDoneAndPrunes(t *testing.T) {
	mgr, layout := newTestManager(t)
	userPath := filepath.Join(layout.Dir(spool.StageProcessing), "2024-01-01__00-00-00", "gina")
	if err := os.MkdirAll(filepath.Join(userPath, "docs"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(userPath, "docs", "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	donePath, err := mgr.Finalize("gina", userPath)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(donePath, "docs", "a.txt")); err != nil {
		t.Fatalf("finalized tree incomplete: %v", err)
	}
	// The completion stamp differs from the original batch stamp.
	if filepath.Base(donePath) == "2024-01-01__00-00-00" {
		t.Fatal("completion stamp must be freshly generated")
	}
	if _, err := os.Stat(filepath.Dir(userPath)); !os.IsNotExist(err) {
		t.Fatal("emptied batch directory was not pruned")
	}
}

func TestMoveToErrorPreservesTree(t *testing.T) {
	mgr, layout := newTestManager(t)
	userPath := filepath.Join(layout.Dir(spool.StageProcessing), "2024-01-01__00-00-00", "hank")
	if err := os.MkdirAll(userPath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(userPath, "payload"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	errPath, err := mgr.MoveToError(userPath)
	if err != nil {
		t.Fatalf("MoveToError failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(errPath, "payload")); err != nil {
		t.Fatalf("error tree incomplete: %v", err)
	}
}
