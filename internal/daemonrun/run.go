package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"shuttle/internal/accounts"
	"shuttle/internal/config"
	"shuttle/internal/copyengine"
	"shuttle/internal/daemon"
	"shuttle/internal/ipc"
	"shuttle/internal/logging"
	"shuttle/internal/monitor"
	"shuttle/internal/notifications"
	"shuttle/internal/spool"
	"shuttle/internal/status"
	"shuttle/internal/storagestat"
	"shuttle/internal/sysstat"
	"shuttle/internal/transfer"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	SocketPath  string
}

// Run wires the full daemon stack and blocks until the process receives
// SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("shuttle-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update shuttle.log link: %v\n", err)
	}
	pidPath := filepath.Join(cfg.Paths.LogDir, "shuttle.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	layout := spool.NewLayout(cfg.Paths.SpoolDir)
	if err := layout.Ensure(); err != nil {
		logger.Error("prepare spool layout", logging.Error(err))
		return err
	}

	store, err := status.Open(cfg.StatusDBPath())
	if err != nil {
		logger.Error("open status store", logging.Error(err))
		return err
	}

	tracker, err := status.NewTracker(signalCtx, store, logger)
	if err != nil {
		store.Close()
		logger.Error("start status tracker", logging.Error(err))
		return err
	}

	storage := storagestat.NewTracker(cfg.Drives, layout.Dir(spool.StageDone),
		cfg.Spool.GracePeriodDays,
		time.Duration(cfg.Workflow.StorageScanInterval)*time.Second, logger)

	notifier := notifications.NewService(cfg)
	engine := copyengine.NewRsync(copyengine.WithBinary(cfg.Destination.RsyncBinary))

	sampleInterval := time.Duration(cfg.Limits.SampleInterval) * time.Second
	cpuMonitor, err := monitor.New(monitor.Config{
		Name:      "cpu",
		Limit:     cfg.Limits.CPUPercent,
		Probation: cfg.Limits.CPUProbation,
		Interval:  sampleInterval,
	}, sysstat.NewCPUSampler().Sample, logger)
	if err != nil {
		return fmt.Errorf("create cpu monitor: %w", err)
	}
	diskMonitor, err := monitor.New(monitor.Config{
		Name:      "disk",
		Limit:     cfg.Limits.DiskQueueDepth,
		Probation: cfg.Limits.DiskProbation,
		Interval:  sampleInterval,
	}, sysstat.NewDiskQueueSampler(cfg.Limits.DiskDevice).Sample, logger)
	if err != nil {
		return fmt.Errorf("create disk monitor: %w", err)
	}
	if err := cpuMonitor.Start(signalCtx); err != nil {
		return fmt.Errorf("start cpu monitor: %w", err)
	}
	defer cpuMonitor.Stop()
	if err := diskMonitor.Start(signalCtx); err != nil {
		return fmt.Errorf("start disk monitor: %w", err)
	}
	defer diskMonitor.Stop()

	mgr, err := transfer.NewManager(cfg, transfer.Deps{
		Spool:       spool.NewManager(layout, cfg.Spool.MarkerFilename, logger),
		Engine:      engine,
		Status:      tracker,
		Store:       store,
		Storage:     storage,
		Accounts:    resolverFor(cfg),
		Notifier:    notifier,
		CPUMonitor:  cpuMonitor,
		DiskMonitor: diskMonitor,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create transfer manager: %w", err)
	}

	d, err := daemon.New(cfg, store, tracker, mgr, storage, notifier, logger, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and state database access"),
			logging.String(logging.FieldImpact, "incoming batches will not be transferred"),
		)
	}

	<-signalCtx.Done()
	logger.Info("shuttle daemon shutting down")
	return nil
}

// resolverFor picks the account listing strategy: remote rsync destinations
// (anything with a host prefix) are listed through the rsync binary, local
// paths are read directly.
func resolverFor(cfg *config.Config) accounts.Resolver {
	root := cfg.Destination.Root
	if strings.Contains(root, ":") {
		return accounts.RsyncResolver{Binary: cfg.Destination.RsyncBinary, Root: root}
	}
	return accounts.DirResolver{Root: root}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "shuttle.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	rsync := cfg.Destination.RsyncBinary
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("rsync_available", binaryAvailable(rsync)),
		logging.String("rsync_binary", rsync),
		logging.Bool("ntfy_topic_present", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Int("watched_drives", len(cfg.Drives)),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
