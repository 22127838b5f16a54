package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"shuttle/internal/accounts"
	"shuttle/internal/config"
	"shuttle/internal/copyengine"
	"shuttle/internal/fileutil"
	"shuttle/internal/logging"
	"shuttle/internal/monitor"
	"shuttle/internal/notifications"
	"shuttle/internal/services"
	"shuttle/internal/spool"
	"shuttle/internal/status"
	"shuttle/internal/storagestat"
	"shuttle/internal/sysstat"
)

// Deps collects the collaborators the Manager composes. Spool, Engine,
// Status, Store, Storage, Accounts, and Notifier are required; the monitor
// and sampler fields default to the live system probes when nil.
type Deps struct {
	Spool    *spool.Manager
	Engine   copyengine.Engine
	Status   *status.Tracker
	Store    *status.Store
	Storage  *storagestat.Tracker
	Accounts accounts.Resolver
	Notifier notifications.Service

	CPUMonitor  *monitor.Monitor
	DiskMonitor *monitor.Monitor

	Sessions  func() int
	MemoryMiB func() (int64, error)
	Blacklist func(names []string) (string, bool, error)

	Logger *slog.Logger
	Now    func() time.Time
}

type pendingResult struct {
	result    copyengine.Result
	localUser string
	destUser  string
	source    string
	started   time.Time
}

// Manager is the transfer orchestrator. All fields below Deps are owned by
// the Run goroutine; nothing else touches them.
type Manager struct {
	cfg      *config.Config
	spool    *spool.Manager
	engine   copyengine.Engine
	tracker  *status.Tracker
	store    *status.Store
	storage  *storagestat.Tracker
	resolver accounts.Resolver
	notifier notifications.Service
	cpu      *monitor.Monitor
	disk     *monitor.Monitor

	sessions  func() int
	memoryMiB func() (int64, error)
	blacklist func(names []string) (string, bool, error)

	logger *slog.Logger
	now    func() time.Time

	engineDone chan copyengine.Result

	state         State
	handle        copyengine.Handle
	handleLocal   string
	handleDest    string
	handleSource  string
	handleStarted time.Time
	pending       *pendingResult

	accountSet     accounts.Set
	accountsLoaded bool
	lastAccounts   time.Time

	cooldown int
	failures int
}

// NewManager validates dependencies and builds the orchestrator.
func NewManager(cfg *config.Config, deps Deps) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("transfer manager requires configuration")
	}
	if deps.Spool == nil || deps.Engine == nil || deps.Status == nil ||
		deps.Store == nil || deps.Storage == nil || deps.Accounts == nil || deps.Notifier == nil {
		return nil, errors.New("transfer manager requires spool, engine, status, store, storage, accounts, and notifier")
	}
	if deps.Sessions == nil {
		deps.Sessions = sysstat.InteractiveSessionCount
	}
	if deps.MemoryMiB == nil {
		deps.MemoryMiB = sysstat.AvailableMemoryMiB
	}
	if deps.Blacklist == nil {
		deps.Blacklist = sysstat.AnyProcessRunning
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Manager{
		cfg:        cfg,
		spool:      deps.Spool,
		engine:     deps.Engine,
		tracker:    deps.Status,
		store:      deps.Store,
		storage:    deps.Storage,
		resolver:   deps.Accounts,
		notifier:   deps.Notifier,
		cpu:        deps.CPUMonitor,
		disk:       deps.DiskMonitor,
		sessions:   deps.Sessions,
		memoryMiB:  deps.MemoryMiB,
		blacklist:  deps.Blacklist,
		logger:     logging.NewComponentLogger(deps.Logger, "transfer"),
		now:        deps.Now,
		engineDone: make(chan copyengine.Result, 1),
		state:      StateStopped,
	}, nil
}

// State reports the orchestrator state. Only safe from the Run goroutine and
// from tests that drive Tick directly.
func (m *Manager) State() State { return m.state }

func (m *Manager) nominalInterval() time.Duration {
	interval := time.Duration(m.cfg.Workflow.TickInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return interval
}

// Run drives the cooperative loop until ctx is cancelled. The timer is only
// rearmed after a tick completes, so ticks never overlap.
func (m *Manager) Run(ctx context.Context) error {
	if m.tracker.UncleanStart() {
		m.maybeNotifyAdmin(ctx, "Unclean shutdown detected", "previous run ended without a final save; resuming from persisted state")
	}

	var cpuEvents, diskEvents <-chan monitor.Event
	if m.cpu != nil {
		cpuEvents = m.cpu.Events()
	}
	if m.disk != nil {
		diskEvents = m.disk.Events()
	}

	m.runTick(ctx)
	timer := time.NewTimer(m.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case <-timer.C:
			m.runTick(ctx)
			timer.Reset(m.currentInterval())
		case ev := <-cpuEvents:
			m.handleMonitorEvent(ev)
		case ev := <-diskEvents:
			m.handleMonitorEvent(ev)
		case res := <-m.engineDone:
			m.notePending(res)
		}
	}
}

func (m *Manager) currentInterval() time.Duration {
	return backoffInterval(m.nominalInterval(), m.failures)
}

func (m *Manager) runTick(ctx context.Context) {
	if err := m.Tick(ctx); err != nil {
		m.failures++
		m.logger.Error("tick failed",
			logging.Error(err),
			logging.Int("consecutive_failures", m.failures),
			logging.Duration("next_interval", m.currentInterval()),
			logging.String(logging.FieldEventType, "tick_failed"),
		)
		return
	}
	if m.failures > 0 {
		m.logger.Info("tick recovered, restoring nominal interval",
			logging.String(logging.FieldEventType, "tick_recovered"),
		)
	}
	m.failures = 0
}

// Tick executes one pass of the per-tick algorithm. Exported so tests can
// drive the loop deterministically.
func (m *Manager) Tick(ctx context.Context) error {
	now := m.now()
	m.tracker.Heartbeat(now)

	m.storage.RefreshDrives()
	if m.storage.LowSpace() {
		m.maybeNotifyStorage(ctx, now)
	}
	if expired := m.storage.RefreshGrace(); len(expired) > 0 {
		m.maybeNotifyGrace(ctx, now, expired)
	}

	if blocked, reason := m.admissionBlocked(); blocked {
		m.suspend(reason)
		return nil
	}
	m.resumeService()

	if err := m.promoteIncoming(ctx); err != nil {
		return err
	}

	// Drain a completion that arrived while this tick was running.
	select {
	case res := <-m.engineDone:
		m.notePending(res)
	default:
	}

	if m.pending != nil {
		return m.finalize(ctx)
	}

	if m.handle != nil || m.state == StateDoNothing {
		return nil
	}

	snap := m.tracker.Snapshot()
	if snap.TransferInProgress && snap.CurrentTransferSource != "" {
		m.logger.Info("resuming persisted transfer",
			logging.String("source", snap.CurrentTransferSource),
			logging.String(logging.FieldUser, snap.TransferTargetUser),
			logging.String(logging.FieldEventType, "transfer_resumed"),
		)
		return m.startCopy(ctx, snap.CurrentTransferSource, snap.TransferTargetUser)
	}

	if m.cooldown > 0 {
		m.cooldown--
		return nil
	}
	return m.dispatch(ctx)
}

// handleMonitorEvent reacts to a hysteresis transition between ticks. High
// pauses a running copy under the session gate; Low resumes only when the
// whole admission picture is clear.
func (m *Manager) handleMonitorEvent(ev monitor.Event) {
	switch ev.Kind {
	case monitor.High:
		if m.sessions() == 0 {
			return
		}
		m.suspend(fmt.Sprintf("%s above limit (%.1f)", ev.Name, ev.Sample))
	case monitor.Low:
		if blocked, _ := m.admissionBlocked(); !blocked {
			m.resumeService()
		}
	}
}

func (m *Manager) admissionBlocked() (bool, string) {
	if m.sessions() == 0 {
		return false, ""
	}
	if m.cpu != nil && m.cpu.IsHigh() {
		return true, "cpu load above limit"
	}
	if m.disk != nil && m.disk.IsHigh() {
		return true, "disk queue above limit"
	}
	if floor := m.cfg.Limits.MinFreeMemoryMiB; floor > 0 {
		avail, err := m.memoryMiB()
		if err != nil {
			m.logger.Warn("memory sample failed", logging.Error(err))
		} else if avail < int64(floor) {
			return true, fmt.Sprintf("free memory below %d MiB", floor)
		}
	}
	if len(m.cfg.Limits.BlacklistProcesses) > 0 {
		name, running, err := m.blacklist(m.cfg.Limits.BlacklistProcesses)
		if err != nil {
			m.logger.Warn("process scan failed", logging.Error(err))
		} else if running {
			return true, "blacklisted process running: " + name
		}
	}
	return false, ""
}

func (m *Manager) suspend(reason string) {
	snap := m.tracker.Snapshot()
	if !snap.ServiceSuspended {
		m.logger.Info("suspending service",
			logging.String("reason", reason),
			logging.String(logging.FieldEventType, "service_suspended"),
		)
	}
	m.tracker.Apply(func(st *status.Status) {
		st.ServiceSuspended = true
		st.SuspendReason = reason
	})
	if m.state == StateActive && m.handle != nil {
		if err := m.handle.Pause(); err != nil {
			m.logger.Warn("pause failed", logging.Error(err))
			return
		}
		m.state = StatePaused
	}
}

func (m *Manager) resumeService() {
	snap := m.tracker.Snapshot()
	if snap.ServiceSuspended {
		m.logger.Info("resuming service",
			logging.String(logging.FieldEventType, "service_resumed"),
		)
		m.tracker.Apply(func(st *status.Status) {
			st.ServiceSuspended = false
			st.SuspendReason = ""
		})
	}
	if m.state == StatePaused && m.handle != nil {
		if err := m.handle.Resume(); err != nil {
			m.logger.Warn("resume failed", logging.Error(err))
			return
		}
		m.state = StateActive
	}
}

func (m *Manager) promoteIncoming(ctx context.Context) error {
	users, err := m.spool.ScanIncoming()
	if err != nil {
		return services.Wrap(services.ErrTransient, "transfer", "scan", "incoming scan failed", err)
	}

	if err := m.refreshAccounts(ctx, false); err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	if !m.accountsLoaded {
		if err := m.refreshAccounts(ctx, true); err != nil {
			return err
		}
	}

	stamp, unmatched, err := m.spool.Promote(users, func(user string) bool {
		_, ok := m.accountSet.Match(user)
		return ok
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "transfer", "promote", "promotion failed", err)
	}
	if stamp != "" {
		m.logger.Info("promoted incoming data",
			logging.String(logging.FieldBatch, stamp),
			logging.Int("users", len(users)-len(unmatched)),
			logging.String(logging.FieldEventType, "batch_promoted"),
		)
	}
	if len(unmatched) > 0 {
		m.logger.Warn("incoming users without destination account",
			logging.String("users", strings.Join(unmatched, ", ")),
			logging.String(logging.FieldEventType, "users_unmatched"),
		)
		m.maybeNotifyAdmin(ctx, "Unmatched incoming accounts", strings.Join(unmatched, ", "))
	}
	return nil
}

// refreshAccounts honors the refresh cadence. A refresh failure is fatal for
// the tick only when no account set has ever been loaded; otherwise the
// stale set stays in service.
func (m *Manager) refreshAccounts(ctx context.Context, force bool) error {
	interval := time.Duration(m.cfg.Spool.AccountRefreshInterval) * time.Second
	if !force && m.accountsLoaded && m.now().Sub(m.lastAccounts) < interval {
		return nil
	}
	set, err := m.resolver.Resolve(ctx)
	if err != nil {
		if !m.accountsLoaded {
			return services.Wrap(services.ErrTransient, "transfer", "accounts", "initial account resolution failed", err)
		}
		m.logger.Warn("account refresh failed, keeping previous set",
			logging.Error(err),
			logging.String(logging.FieldEventType, "account_refresh_failed"),
		)
		return nil
	}
	m.accountSet = set
	m.accountsLoaded = true
	m.lastAccounts = m.now()
	return nil
}

func (m *Manager) dispatch(ctx context.Context) error {
	batch, err := m.spool.OldestBatch()
	if err != nil {
		return services.Wrap(services.ErrTransient, "transfer", "queue", "queue scan failed", err)
	}
	if batch == nil {
		return nil
	}

	user := batch.Users[0]
	userPath := filepath.Join(batch.Path, user)
	canonical, ok := m.accountSet.Match(user)
	if !ok {
		// Account disappeared between promotion and dispatch.
		moved, moveErr := m.spool.MoveToError(userPath)
		if moveErr != nil {
			return services.Wrap(services.ErrTransient, "transfer", "dispatch", "relocating orphaned user failed", moveErr)
		}
		m.logger.Warn("destination account vanished, batch moved to error area",
			logging.String(logging.FieldUser, user),
			logging.String("path", moved),
			logging.String(logging.FieldEventType, "account_vanished"),
		)
		m.maybeNotifyAdmin(ctx, "Destination account vanished", fmt.Sprintf("%s preserved at %s", user, moved))
		return nil
	}

	size := fileutil.DirSize(userPath)

	m.tracker.Apply(func(st *status.Status) {
		st.CurrentTransferSource = userPath
		st.TransferTargetUser = canonical
		st.TransferInProgress = true
		st.CurrentTransferSize = size
		st.BytesCompleted = 0
		st.BytesCurrentFile = 0
		st.PercentComplete = 0
	})
	m.logger.Info("dispatching batch",
		logging.String(logging.FieldBatch, batch.Stamp),
		logging.String(logging.FieldUser, user),
		logging.String("size", humanize.IBytes(uint64(size))),
		logging.String(logging.FieldEventType, "transfer_dispatched"),
	)
	return m.startCopy(ctx, userPath, canonical)
}

func (m *Manager) destinationFor(user string) string {
	return strings.TrimRight(m.cfg.Destination.Root, "/") + "/" + user + "/"
}

func (m *Manager) startCopy(ctx context.Context, source, destUser string) error {
	opts := copyengine.Options{
		BandwidthKB: m.cfg.Destination.BandwidthKB,
		Extra:       m.cfg.Destination.Options,
	}
	hooks := copyengine.Hooks{
		OnFileStarted: func(_ string, size int64) {
			m.tracker.Apply(func(st *status.Status) {
				st.BytesCompleted += st.BytesCurrentFile
				st.BytesCurrentFile = size
				if st.CurrentTransferSize > 0 {
					st.PercentComplete = float64(st.BytesCompleted) / float64(st.CurrentTransferSize) * 100
				}
			})
		},
		OnProgress: func(percent float64) {
			m.tracker.Apply(func(st *status.Status) {
				if st.CurrentTransferSize > 0 {
					done := float64(st.BytesCompleted) + float64(st.BytesCurrentFile)*percent/100
					st.PercentComplete = done / float64(st.CurrentTransferSize) * 100
				} else {
					st.PercentComplete = percent
				}
			})
		},
		OnCompleted: func(res copyengine.Result) {
			m.engineDone <- res
		},
	}

	handle, err := m.engine.Start(ctx, source+"/", m.destinationFor(destUser), opts, hooks)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "transfer", "copy", "starting copy run failed", err)
	}
	m.handle = handle
	m.handleLocal = filepath.Base(source)
	m.handleDest = destUser
	m.handleSource = source
	m.handleStarted = m.now()
	m.state = StateActive
	m.logger.Info("copy run started",
		logging.String("run_id", handle.ID()),
		logging.String(logging.FieldUser, destUser),
		logging.String(logging.FieldEventType, "copy_started"),
	)
	return nil
}

func (m *Manager) notePending(res copyengine.Result) {
	if m.handle == nil {
		return
	}
	m.pending = &pendingResult{
		result:    res,
		localUser: m.handleLocal,
		destUser:  m.handleDest,
		source:    m.handleSource,
		started:   m.handleStarted,
	}
	m.handle = nil
	if m.state == StateActive || m.state == StatePaused {
		m.state = StateStopped
	}
}

// finalize retires a completed copy run. A failed run keeps the persisted
// in-progress state so the next tick resumes the same source under backoff;
// a run that finished but cannot be moved is preserved in the error area.
func (m *Manager) finalize(ctx context.Context) error {
	p := m.pending
	m.pending = nil

	if !p.result.Success {
		runErr := errors.New(p.result.Error)
		if err := m.notifier.NotifyError(ctx, runErr, "copy run for "+p.localUser); err != nil {
			m.logger.Warn("error notification failed", logging.Error(err))
		}
		return services.Wrap(services.ErrExternalTool, "transfer", "copy", "copy run failed", runErr)
	}

	target, err := m.spool.Finalize(p.localUser, p.source)
	if err != nil {
		moved, moveErr := m.spool.MoveToError(p.source)
		if moveErr != nil {
			return services.Wrap(services.ErrTransient, "transfer", "finalize", "preserving failed batch failed", moveErr)
		}
		m.logger.Error("finalize failed, batch preserved in error area",
			logging.Error(err),
			logging.String("path", moved),
			logging.String(logging.FieldUser, p.localUser),
			logging.String(logging.FieldEventType, "finalize_failed"),
		)
		m.maybeNotifyAdmin(ctx, "Batch preserved after finalize failure", moved)
		m.resetTransferStatus(0)
		return nil
	}

	stamp := filepath.Base(target)
	bytes := p.result.BytesSent
	if err := m.store.AppendHistory(ctx, status.HistoryEntry{
		User:        p.localUser,
		Batch:       stamp,
		Bytes:       bytes,
		StartedAt:   p.started,
		CompletedAt: m.now(),
	}); err != nil {
		m.logger.Warn("recording transfer history failed", logging.Error(err))
	}
	m.resetTransferStatus(100)

	if err := m.notifier.NotifyTransferCompleted(ctx, p.localUser, stamp, humanize.IBytes(uint64(bytes))); err != nil {
		m.logger.Warn("completion notification failed", logging.Error(err))
	}
	m.logger.Info("transfer finalized",
		logging.String(logging.FieldUser, p.localUser),
		logging.String(logging.FieldBatch, stamp),
		logging.String("size", humanize.IBytes(uint64(bytes))),
		logging.String(logging.FieldEventType, "transfer_finalized"),
	)
	m.cooldown = m.cfg.Spool.CooldownCycles
	return nil
}

func (m *Manager) resetTransferStatus(percent float64) {
	m.tracker.Apply(func(st *status.Status) {
		st.CurrentTransferSource = ""
		st.TransferTargetUser = ""
		st.TransferInProgress = false
		st.CurrentTransferSize = 0
		st.BytesCompleted = 0
		st.BytesCurrentFile = 0
		st.PercentComplete = percent
	})
}

func (m *Manager) shutdown() {
	m.state = StateDoNothing
	if m.handle != nil {
		// Persisted status keeps the in-progress flag so the next start
		// resumes this source.
		if err := m.handle.Stop(); err != nil {
			m.logger.Warn("stopping copy run failed", logging.Error(err))
		}
		m.handle = nil
	}
	m.logger.Info("orchestrator stopped",
		logging.String(logging.FieldEventType, "orchestrator_stopped"),
	)
}

func (m *Manager) maybeNotifyStorage(ctx context.Context, now time.Time) {
	delta := time.Duration(m.cfg.Notifications.StorageDeltaMinutes) * time.Minute
	snap := m.tracker.Snapshot()
	if delta > 0 && now.Sub(snap.LastStorageNotification) < delta {
		return
	}
	var low storagestat.DriveStatus
	for _, drive := range m.storage.RefreshDrives() {
		if drive.Low {
			low = drive
			break
		}
	}
	err := m.notifier.NotifyStorageLow(ctx, low.Path, humanize.IBytes(low.FreeBytes), humanize.IBytes(low.MinFree))
	if err != nil {
		m.logger.Warn("storage notification failed", logging.Error(err))
		return
	}
	m.tracker.Apply(func(st *status.Status) { st.LastStorageNotification = now })
}

func (m *Manager) maybeNotifyGrace(ctx context.Context, now time.Time, expired map[string][]storagestat.ExpiredBatch) {
	delta := time.Duration(m.cfg.Notifications.GraceDeltaMinutes) * time.Minute
	snap := m.tracker.Snapshot()
	if delta > 0 && now.Sub(snap.LastGraceNotification) < delta {
		return
	}
	if err := m.notifier.NotifyGraceReport(ctx, storagestat.ExpiredSummary(expired)); err != nil {
		m.logger.Warn("grace notification failed", logging.Error(err))
		return
	}
	m.tracker.Apply(func(st *status.Status) { st.LastGraceNotification = now })
}

func (m *Manager) maybeNotifyAdmin(ctx context.Context, subject, detail string) {
	now := m.now()
	delta := time.Duration(m.cfg.Notifications.AdminDeltaMinutes) * time.Minute
	snap := m.tracker.Snapshot()
	if delta > 0 && now.Sub(snap.LastAdminNotification) < delta {
		return
	}
	if err := m.notifier.NotifyAdminAlert(ctx, subject, detail); err != nil {
		m.logger.Warn("admin notification failed", logging.Error(err))
		return
	}
	m.tracker.Apply(func(st *status.Status) { st.LastAdminNotification = now })
}
