package status

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"shuttle/internal/logging"
)

// Tracker owns the live status snapshot. All mutation goes through Apply,
// which serializes writers on a single goroutine and persists the new
// snapshot before returning.
type Tracker struct {
	store  *Store
	logger *slog.Logger

	commands chan command
	done     chan struct{}

	uncleanStart bool
}

type command struct {
	mutate func(*Status)
	reply  chan Status
}

// NewTracker loads the persisted snapshot, repairs stale fields, marks the
// shutdown dirty, and starts the owning goroutine.
func NewTracker(ctx context.Context, store *Store, logger *slog.Logger) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("status tracker requires a store")
	}
	logger = logging.NewComponentLogger(logger, "status")

	current, err := store.LoadStatus(ctx)
	if err != nil {
		return nil, err
	}

	uncleanStart := !current.CleanShutdown && !current.LastHeartbeat.IsZero()
	if uncleanStart {
		logger.Warn("previous run terminated uncleanly",
			logging.String(logging.FieldEventType, "unclean_shutdown_detected"),
			logging.Bool("transfer_in_progress", current.TransferInProgress),
		)
	}

	// A recorded source that no longer exists cannot be resumed; reset it
	// rather than refusing to start.
	if current.CurrentTransferSource != "" {
		if _, statErr := os.Stat(current.CurrentTransferSource); statErr != nil {
			logger.Warn("persisted transfer source missing on disk, resetting",
				logging.String("source", current.CurrentTransferSource),
				logging.String(logging.FieldEventType, "stale_status_reset"),
			)
			current.CurrentTransferSource = ""
			current.TransferTargetUser = ""
			current.TransferInProgress = false
			current.CurrentTransferSize = 0
			current.BytesCompleted = 0
			current.BytesCurrentFile = 0
			current.PercentComplete = 0
		}
	}

	// Dirty until the graceful stop's final save.
	current.CleanShutdown = false
	if err := store.SaveStatus(ctx, current); err != nil {
		return nil, err
	}

	t := &Tracker{
		store:        store,
		logger:       logger,
		commands:     make(chan command),
		done:         make(chan struct{}),
		uncleanStart: uncleanStart,
	}
	go t.run(current)
	return t, nil
}

func (t *Tracker) run(current Status) {
	defer close(t.done)
	for cmd := range t.commands {
		if cmd.mutate != nil {
			cmd.mutate(&current)
			if err := t.store.SaveStatus(context.Background(), current); err != nil {
				t.logger.Error("status write-through failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "status_persist_failed"),
					logging.String(logging.FieldErrorHint, "check state directory and disk space"),
				)
			}
		}
		if cmd.reply != nil {
			cmd.reply <- current
		}
	}
}

// Apply mutates the snapshot and persists it before returning the result.
func (t *Tracker) Apply(mutate func(*Status)) Status {
	reply := make(chan Status, 1)
	select {
	case t.commands <- command{mutate: mutate, reply: reply}:
		return <-reply
	case <-t.done:
		return Status{}
	}
}

// UncleanStart reports whether the loaded snapshot showed a prior run that
// died without its final save.
func (t *Tracker) UncleanStart() bool { return t.uncleanStart }

// Snapshot returns the current status without mutating it.
func (t *Tracker) Snapshot() Status {
	return t.Apply(nil)
}

// Heartbeat stamps the liveness field.
func (t *Tracker) Heartbeat(now time.Time) {
	t.Apply(func(st *Status) { st.LastHeartbeat = now })
}

// CloseClean records a graceful shutdown and stops the owning goroutine. The
// final snapshot carries CleanShutdown = true.
func (t *Tracker) CloseClean() {
	t.Apply(func(st *Status) { st.CleanShutdown = true })
	close(t.commands)
	<-t.done
}

// Close stops the owning goroutine without marking the shutdown clean, used
// on error paths so the next start resumes recovery.
func (t *Tracker) Close() {
	close(t.commands)
	<-t.done
}
