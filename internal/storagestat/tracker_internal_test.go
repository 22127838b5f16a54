package storagestat

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/spool"
)

func TestGraceExpiryBoundary(t *testing.T) {
	graceDir := t.TempDir()
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.Local)

	mkBatch := func(user string, stamp time.Time, size int) {
		dir := filepath.Join(graceDir, user, spool.FormatStamp(stamp))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "data"), make([]byte, size), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	// Exactly 30 days old: expired. 29 days: not.
	mkBatch("alice", now.AddDate(0, 0, -30), 100)
	mkBatch("alice", now.AddDate(0, 0, -29), 50)
	mkBatch("bob", now.AddDate(0, 0, -45), 200)

	tracker := NewTracker(nil, graceDir, 30, time.Second, nil)
	tracker.now = func() time.Time { return now }

	expired := tracker.RefreshGrace()
	if len(expired) != 2 {
		t.Fatalf("expired users = %v, want alice and bob", expired)
	}
	if len(expired["alice"]) != 1 {
		t.Fatalf("alice expired batches = %v, want exactly the 30-day batch", expired["alice"])
	}
	if expired["alice"][0].AgeDays != 30 || expired["alice"][0].Bytes != 100 {
		t.Fatalf("unexpected alice batch: %+v", expired["alice"][0])
	}
	if len(expired["bob"]) != 1 || expired["bob"][0].AgeDays != 45 {
		t.Fatalf("unexpected bob batches: %+v", expired["bob"])
	}
}

func TestGraceScanSkipsUnparsableNames(t *testing.T) {
	graceDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(graceDir, "carl", "not-a-stamp"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	tracker := NewTracker(nil, graceDir, 30, time.Second, nil)
	expired := tracker.RefreshGrace()
	if len(expired) != 0 {
		t.Fatalf("unparsable batch reported expired: %v", expired)
	}
}

func TestDriveScanRateLimited(t *testing.T) {
	calls := 0
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.Local)

	tracker := NewTracker([]config.DriveWatch{{Path: "/data", MinFreeGiB: 1}}, t.TempDir(), 30, 20*time.Second, nil)
	tracker.statfs = func(string) (uint64, error) {
		calls++
		return 10 << 30, nil
	}
	tracker.now = func() time.Time { return now }

	tracker.RefreshDrives()
	tracker.RefreshDrives()
	if calls != 1 {
		t.Fatalf("statfs calls = %d, want 1 within the rate window", calls)
	}

	now = now.Add(21 * time.Second)
	tracker.RefreshDrives()
	if calls != 2 {
		t.Fatalf("statfs calls = %d, want 2 after the window elapsed", calls)
	}
}

func TestLowSpaceThreshold(t *testing.T) {
	tracker := NewTracker([]config.DriveWatch{{Path: "/data", MinFreeGiB: 10}}, t.TempDir(), 30, time.Second, nil)
	free := uint64(20) << 30
	tracker.statfs = func(string) (uint64, error) { return free, nil }

	base := time.Now()
	tick := 0
	tracker.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	tracker.RefreshDrives()
	if tracker.LowSpace() {
		t.Fatal("20 GiB free with a 10 GiB floor must not be low")
	}

	free = uint64(5) << 30
	tracker.RefreshDrives()
	if !tracker.LowSpace() {
		t.Fatal("5 GiB free with a 10 GiB floor must be low")
	}
}
