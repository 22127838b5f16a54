package ipc_test

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
	"shuttle/internal/ipc"
	"shuttle/internal/logging"
	"shuttle/internal/notifications"
	"shuttle/internal/spool"
	"shuttle/internal/status"
	"shuttle/internal/storagestat"
	"shuttle/internal/testsupport"
	"shuttle/internal/transfer"
)

type fixture struct {
	cfg    *config.Config
	daemon *daemon.Daemon
	client *ipc.Client
	server *ipc.Server
	store  *status.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithDestinationAccounts("alice"))
	layout := spool.NewLayout(cfg.Paths.SpoolDir)
	if err := layout.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	store := testsupport.MustOpenStore(t, cfg)
	tracker := testsupport.MustTracker(t, store)
	storage := storagestat.NewTracker(cfg.Drives, layout.Dir(spool.StageDone),
		cfg.Spool.GracePeriodDays, time.Second, logging.NewNop())
	notifier := notifications.NewService(cfg)

	mgr, err := transfer.NewManager(cfg, transfer.Deps{
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

	d, err := daemon.New(cfg, store, tracker, mgr, storage, notifier, logging.NewNop(), "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	server, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logging.NewNop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &fixture{cfg: cfg, daemon: d, client: client, server: server, store: store}
}

func TestStatusRoundTrip(t *testing.T) {
	f := newFixture(t)

	resp, err := f.client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if resp.Running {
		t.Fatal("daemon reported running before Start")
	}
	if resp.StateDBPath != f.cfg.StatusDBPath() {
		t.Fatalf("state db path = %q, want %q", resp.StateDBPath, f.cfg.StatusDBPath())
	}
	if resp.TransferInProgress {
		t.Fatal("fresh daemon must not report a transfer")
	}
}

func TestStopViaIPC(t *testing.T) {
	f := newFixture(t)
	if err := f.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := f.client.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !resp.Stopped {
		t.Fatal("expected stopped response")
	}

	st, err := f.client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Running {
		t.Fatal("daemon still reports running after stop")
	}
}

func TestGraceReportViaIPC(t *testing.T) {
	f := newFixture(t)

	old := spool.FormatStamp(time.Now().AddDate(0, 0, -45))
	testsupport.WriteFile(t,
		filepath.Join(f.cfg.Paths.SpoolDir, "Done", "alice", old, "file.bin"), 128)

	resp, err := f.client.GraceReport()
	if err != nil {
		t.Fatalf("GraceReport: %v", err)
	}
	if len(resp.Batches) != 1 {
		t.Fatalf("expected 1 expired batch, got %d", len(resp.Batches))
	}
	batch := resp.Batches[0]
	if batch.User != "alice" || batch.Stamp != old || batch.AgeDays < 45 || batch.Bytes != 128 {
		t.Fatalf("unexpected batch %+v", batch)
	}
}

func TestHistoryViaIPC(t *testing.T) {
	f := newFixture(t)

	entry := status.HistoryEntry{
		User:        "alice",
		Batch:       "2026-02-01__10-00-00",
		Bytes:       512,
		StartedAt:   time.Now().Add(-time.Minute).UTC(),
		CompletedAt: time.Now().UTC(),
	}
	if err := f.store.AppendHistory(context.Background(), entry); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	resp, err := f.client.History(10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(resp.Entries))
	}
	if resp.Entries[0].User != "alice" || resp.Entries[0].Bytes != 512 {
		t.Fatalf("unexpected entry %+v", resp.Entries[0])
	}
}

func TestLogTailViaIPC(t *testing.T) {
	f := newFixture(t)

	logPath := filepath.Join(f.cfg.Paths.LogDir, "shuttle.log")
	if err := os.WriteFile(logPath, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	resp, err := f.client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[0] != "two" || resp.Lines[1] != "three" {
		t.Fatalf("unexpected lines: %#v", resp.Lines)
	}
	if resp.Offset == 0 {
		t.Fatal("expected offset to advance")
	}
}

func TestNotificationViaIPCWithoutTopic(t *testing.T) {
	f := newFixture(t)

	resp, err := f.client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if resp.Sent {
		t.Fatal("expected not sent without a configured topic")
	}
}
