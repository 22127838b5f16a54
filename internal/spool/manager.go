package spool

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"shuttle/internal/fileutil"
	"shuttle/internal/logging"
)

// orphanDirName collects stray top-level files inside a user directory before
// promotion.
const orphanDirName = "orphaned"

// Batch is one timestamp-named directory in Processing holding per-user
// subtrees. Batches are transient: rescanned each cycle, never cached.
type Batch struct {
	Stamp string
	Path  string
	Users []string
}

// Manager moves directory trees between spool stages.
type Manager struct {
	layout Layout
	marker string
	logger *slog.Logger
	now    func() time.Time
}

// NewManager constructs a spool manager. marker is the sentinel filename that
// flags an incoming user directory as intentionally empty.
func NewManager(layout Layout, marker string, logger *slog.Logger) *Manager {
	return &Manager{
		layout: layout,
		marker: marker,
		logger: logging.NewComponentLogger(logger, "spool"),
		now:    time.Now,
	}
}

// Layout exposes the stage layout for read-only callers.
func (m *Manager) Layout() Layout { return m.layout }

// ScanIncoming returns the user directories under Incoming that hold data
// beyond the marker file. Directories that are empty, or contain only the
// marker, are skipped; a configured-but-missing marker is recreated on the
// way (best effort, never an error).
func (m *Manager) ScanIncoming() ([]string, error) {
	incoming := m.layout.Dir(StageIncoming)
	entries, err := os.ReadDir(incoming)
	if err != nil {
		return nil, fmt.Errorf("scan incoming: %w", err)
	}

	var ready []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		user := entry.Name()
		userDir := filepath.Join(incoming, user)
		hasData, hasMarker, err := m.inspectUserDir(userDir)
		if err != nil {
			m.logger.Warn("unable to inspect incoming directory",
				logging.String(logging.FieldUser, user),
				logging.Error(err),
				logging.String(logging.FieldEventType, "incoming_inspect_failed"),
			)
			continue
		}
		if !hasMarker && m.marker != "" {
			// Recreate the sentinel; failure here is deliberately ignored.
			_ = os.WriteFile(filepath.Join(userDir, m.marker), nil, 0o644)
		}
		if hasData {
			ready = append(ready, user)
		}
	}
	sort.Strings(ready)
	return ready, nil
}

func (m *Manager) inspectUserDir(dir string) (hasData, hasMarker bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, false, err
	}
	for _, entry := range entries {
		if !entry.IsDir() && entry.Name() == m.marker {
			hasMarker = true
			continue
		}
		hasData = true
	}
	return hasData, hasMarker, nil
}

// Promote moves the ready user directories out of Incoming into a single new
// Processing batch. Users without a destination account go to Unmatched under
// the same stamp instead; they are returned for anomaly reporting. Each
// promoted incoming directory is recreated empty with its marker.
func (m *Manager) Promote(users []string, matched func(user string) bool) (stamp string, unmatched []string, err error) {
	if len(users) == 0 {
		return "", nil, nil
	}
	stamp = m.promotionStamp(users)

	for _, user := range users {
		src := filepath.Join(m.layout.Dir(StageIncoming), user)
		if err := m.collectOrphans(src); err != nil {
			return stamp, unmatched, fmt.Errorf("collect orphans for %s: %w", user, err)
		}

		stage := StageProcessing
		if matched != nil && !matched(user) {
			stage = StageUnmatched
			unmatched = append(unmatched, user)
		}
		dst := filepath.Join(m.layout.Dir(stage), stamp, user)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return stamp, unmatched, fmt.Errorf("create batch dir: %w", err)
		}
		if err := fileutil.MoveTree(src, dst); err != nil {
			return stamp, unmatched, fmt.Errorf("promote %s: %w", user, err)
		}
		if err := m.EnsureUserDir(user); err != nil {
			m.logger.Warn("unable to recreate incoming directory",
				logging.String(logging.FieldUser, user),
				logging.Error(err),
				logging.String(logging.FieldEventType, "incoming_recreate_failed"),
			)
		}
		m.logger.Info("promoted user directory",
			logging.String(logging.FieldUser, user),
			logging.String(logging.FieldBatch, stamp),
			logging.String("stage", string(stage)),
		)
	}
	return stamp, unmatched, nil
}

// promotionStamp returns a batch stamp with no existing user directory under
// Processing or Unmatched for any user being promoted. User directory names
// must survive promotion verbatim, so a same-second collision advances the
// batch stamp instead of suffixing the destination.
func (m *Manager) promotionStamp(users []string) string {
	base := m.now()
	for i := 0; ; i++ {
		stamp := FormatStamp(base.Add(time.Duration(i) * time.Second))
		if !m.stampTaken(stamp, users) {
			return stamp
		}
	}
}

func (m *Manager) stampTaken(stamp string, users []string) bool {
	for _, stage := range []Stage{StageProcessing, StageUnmatched} {
		for _, user := range users {
			if _, err := os.Lstat(filepath.Join(m.layout.Dir(stage), stamp, user)); err == nil {
				return true
			}
		}
	}
	return false
}

// collectOrphans moves stray top-level files into an orphaned subdirectory so
// the promoted tree only holds subdirectories. Collection is skipped when no
// stray files exist or an orphaned directory is already present.
func (m *Manager) collectOrphans(userDir string) error {
	entries, err := os.ReadDir(userDir)
	if err != nil {
		return err
	}

	var stray []string
	for _, entry := range entries {
		if entry.IsDir() {
			if entry.Name() == orphanDirName {
				return nil
			}
			continue
		}
		if entry.Name() == m.marker {
			continue
		}
		stray = append(stray, entry.Name())
	}
	if len(stray) == 0 {
		return nil
	}

	orphanDir := filepath.Join(userDir, orphanDirName)
	if err := os.MkdirAll(orphanDir, 0o755); err != nil {
		return err
	}
	for _, name := range stray {
		if err := os.Rename(filepath.Join(userDir, name), filepath.Join(orphanDir, name)); err != nil {
			return err
		}
	}
	return nil
}

// EnsureUserDir creates an Incoming user directory with its marker file.
func (m *Manager) EnsureUserDir(user string) error {
	dir := filepath.Join(m.layout.Dir(StageIncoming), user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if m.marker != "" {
		_ = os.WriteFile(filepath.Join(dir, m.marker), nil, 0o644)
	}
	return nil
}

// OldestBatch returns the oldest Processing batch with at least one user
// directory, or nil when the queue is empty. Empty batch directories are
// removed along the way; they should not occur but are handled defensively.
// Unparsable batch names sort newest so well-formed work dispatches first.
func (m *Manager) OldestBatch() (*Batch, error) {
	processing := m.layout.Dir(StageProcessing)
	entries, err := os.ReadDir(processing)
	if err != nil {
		return nil, fmt.Errorf("scan processing: %w", err)
	}

	type candidate struct {
		name  string
		stamp time.Time
		ok    bool
	}
	candidates := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		stamp, err := ParseStamp(entry.Name())
		if err != nil {
			m.logger.Warn("batch directory name does not parse as a timestamp",
				logging.String(logging.FieldBatch, entry.Name()),
				logging.Int("age_days", AgeSentinel),
				logging.String(logging.FieldEventType, "batch_stamp_unparsable"),
			)
		}
		candidates = append(candidates, candidate{name: entry.Name(), stamp: stamp, ok: err == nil})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ok != candidates[j].ok {
			return candidates[i].ok
		}
		if !candidates[i].ok {
			return candidates[i].name < candidates[j].name
		}
		return candidates[i].stamp.Before(candidates[j].stamp)
	})

	for _, cand := range candidates {
		batchPath := filepath.Join(processing, cand.name)
		users, err := listUserDirs(batchPath)
		if err != nil {
			return nil, err
		}
		if len(users) == 0 {
			m.logger.Warn("removing empty processing batch",
				logging.String(logging.FieldBatch, cand.name),
				logging.String(logging.FieldEventType, "empty_batch_removed"),
			)
			if err := os.RemoveAll(batchPath); err != nil {
				return nil, fmt.Errorf("remove empty batch %s: %w", cand.name, err)
			}
			continue
		}
		return &Batch{Stamp: cand.name, Path: batchPath, Users: users}, nil
	}
	return nil, nil
}

func listUserDirs(batchPath string) ([]string, error) {
	entries, err := os.ReadDir(batchPath)
	if err != nil {
		return nil, fmt.Errorf("scan batch %s: %w", batchPath, err)
	}
	var users []string
	for _, entry := range entries {
		if entry.IsDir() {
			users = append(users, entry.Name())
		}
	}
	sort.Strings(users)
	return users, nil
}

// Finalize retires a completed user transfer into the grace holding area at
// Done/<user>/<completion-stamp>. The stamp marks the start of the grace
// period, not the original batch time. The emptied Processing batch directory
// is pruned afterwards.
func (m *Manager) Finalize(user, userPath string) (string, error) {
	doneDir := filepath.Join(m.layout.Dir(StageDone), user)
	if err := os.MkdirAll(doneDir, 0o755); err != nil {
		return "", fmt.Errorf("create done dir: %w", err)
	}
	target := filepath.Join(doneDir, FormatStamp(m.now()))
	if err := m.collisionSafeMove(userPath, target); err != nil {
		return "", fmt.Errorf("finalize %s: %w", user, err)
	}
	m.pruneBatchParent(filepath.Dir(userPath))
	return target, nil
}

// MoveToError relocates a failed batch tree into Error/<stamp> so nothing is
// deleted or left in an ambiguous stage.
func (m *Manager) MoveToError(path string) (string, error) {
	errDir := m.layout.Dir(StageError)
	if err := os.MkdirAll(errDir, 0o755); err != nil {
		return "", fmt.Errorf("create error dir: %w", err)
	}
	target := filepath.Join(errDir, FormatStamp(m.now()))
	if err := m.collisionSafeMove(path, target); err != nil {
		return "", fmt.Errorf("move to error stage: %w", err)
	}
	m.pruneBatchParent(filepath.Dir(path))
	return target, nil
}

func (m *Manager) pruneBatchParent(batchPath string) {
	// Only remove when empty; Remove fails on non-empty directories.
	if err := os.Remove(batchPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		if users, listErr := listUserDirs(batchPath); listErr == nil && len(users) > 0 {
			return
		}
		m.logger.Debug("batch parent not pruned", logging.String("path", batchPath), logging.Error(err))
	}
}

// collisionSafeMove moves src to dst, appending a timestamp suffix (and a
// counter if needed) when dst already exists. Existing data is never
// overwritten.
func (m *Manager) collisionSafeMove(src, dst string) error {
	target := dst
	if _, err := os.Lstat(target); err == nil {
		target = dst + "__" + FormatStamp(m.now())
		for i := 1; ; i++ {
			if _, err := os.Lstat(target); errors.Is(err, os.ErrNotExist) {
				break
			}
			target = fmt.Sprintf("%s__%s-%d", dst, FormatStamp(m.now()), i)
		}
		m.logger.Warn("move target exists, using suffixed name",
			logging.String("target", dst),
			logging.String("suffixed", target),
			logging.String(logging.FieldEventType, "move_collision"),
		)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat move target: %w", err)
	}
	return fileutil.MoveTree(src, target)
}
