package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/logs"
	"shuttle/internal/notifications"
	"shuttle/internal/status"
	"shuttle/internal/storagestat"
	"shuttle/internal/transfer"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *status.Store
	tracker  *status.Tracker
	manager  *transfer.Manager
	storage  *storagestat.Tracker
	notifier notifications.Service
	logPath  string

	lockPath string
	lock     *flock.Flock
	hotplug  *hotplugMonitor

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	Transfer       status.Status
	StorageSummary string
	StateDBPath    string
	LockFilePath   string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *status.Store, tracker *status.Tracker, mgr *transfer.Manager, storage *storagestat.Tracker, notifier notifications.Service, logger *slog.Logger, logPath string) (*Daemon, error) {
	if cfg == nil || store == nil || tracker == nil || mgr == nil || storage == nil {
		return nil, errors.New("daemon requires config, store, tracker, manager, and storage")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		tracker:  tracker,
		manager:  mgr,
		storage:  storage,
		notifier: notifier,
		logPath:  logPath,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		hotplug:  newHotplugMonitor(logger, storage),
	}, nil
}

// Start acquires the daemon lock and launches the transfer loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shuttle daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.hotplug.Start(runCtx); err != nil {
		d.logger.Warn("hotplug monitor unavailable", logging.Error(err))
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.manager.Run(runCtx); err != nil {
			d.logger.Error("transfer loop exited", logging.Error(err))
		}
	}()

	d.running.Store(true)
	d.logger.Info("shuttle daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.hotplug.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("shuttle daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stop"),
	)
}

// Close stops processing and records the graceful shutdown in the status row.
func (d *Daemon) Close() error {
	d.Stop()
	d.tracker.CloseClean()
	return d.store.Close()
}

// Status returns the current daemon status.
func (d *Daemon) Status(_ context.Context) Status {
	d.storage.RefreshDrives()
	return Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		Transfer:       d.tracker.Snapshot(),
		StorageSummary: d.storage.Summary(),
		StateDBPath:    d.cfg.StatusDBPath(),
		LockFilePath:   d.lockPath,
	}
}

// GraceReport rescans the grace area and returns expired batches per user.
func (d *Daemon) GraceReport(_ context.Context) map[string][]storagestat.ExpiredBatch {
	return d.storage.RefreshGrace()
}

// History returns the most recent finalized transfers, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]status.HistoryEntry, error) {
	return d.store.History(ctx, limit)
}

// TestNotification sends a probe through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// LogTail reads daemon log lines for the CLI. When the daemon was built
// without an explicit log path it falls back to the shuttle.log pointer in
// the configured log directory.
func (d *Daemon) LogTail(ctx context.Context, opts logs.TailOptions) (logs.TailResult, error) {
	path := d.logPath
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(d.cfg.Paths.LogDir, "shuttle.log")
	}
	return logs.Tail(ctx, path, opts)
}
