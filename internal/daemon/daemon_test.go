package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shuttle/internal/accounts"
	"shuttle/internal/config"
	"shuttle/internal/copyengine"
	"shuttle/internal/daemon"
	"shuttle/internal/logging"
	"shuttle/internal/notifications"
	"shuttle/internal/spool"
	"shuttle/internal/status"
	"shuttle/internal/storagestat"
	"shuttle/internal/transfer"
)

func newDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Paths.SpoolDir = filepath.Join(root, "spool")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.StateDir = filepath.Join(root, "state")
	cfg.Destination.Root = filepath.Join(root, "dest")
	if err := os.MkdirAll(cfg.Destination.Root, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	layout := spool.NewLayout(cfg.Paths.SpoolDir)
	if err := layout.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	store, err := status.Open(cfg.StatusDBPath())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tracker, err := status.NewTracker(context.Background(), store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	storage := storagestat.NewTracker(cfg.Drives, layout.Dir(spool.StageDone),
		cfg.Spool.GracePeriodDays, time.Second, logging.NewNop())
	notifier := notifications.NewService(&cfg)

	mgr, err := transfer.NewManager(&cfg, transfer.Deps{
		Spool:    spool.NewManager(layout, cfg.Spool.MarkerFilename, logging.NewNop()),
		Engine:   copyengine.NewRsync(),
		Status:   tracker,
		Store:    store,
		Storage:  storage,
		Accounts: accounts.DirResolver{Root: cfg.Destination.Root},
		Notifier: notifier,
		Sessions: func() int { return 0 },
		Logger:   logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	d, err := daemon.New(&cfg, store, tracker, mgr, storage, notifier, logging.NewNop(), "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t)

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail while running")
	}

	st := d.Status(ctx)
	if !st.Running {
		t.Fatal("expected running status")
	}
	if st.PID != os.Getpid() {
		t.Fatalf("PID = %d, want %d", st.PID, os.Getpid())
	}
	if st.LockFilePath == "" || st.StateDBPath == "" {
		t.Fatalf("expected populated paths: %+v", st)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDaemonStatusWhileStopped(t *testing.T) {
	d := newDaemon(t)
	st := d.Status(context.Background())
	if st.Running {
		t.Fatal("expected stopped status before Start")
	}
	if st.Transfer.TransferInProgress {
		t.Fatal("fresh daemon must not report a transfer")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDaemonHistoryEmpty(t *testing.T) {
	d := newDaemon(t)
	defer d.Close()

	entries, err := d.History(context.Background(), 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(entries))
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	d := newDaemon(t)
	defer d.Close()

	sent, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent || message == "" {
		t.Fatalf("expected unsent with explanation, got sent=%v message=%q", sent, message)
	}
}
