package storagestat

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"shuttle/internal/config"
	"shuttle/internal/fileutil"
	"shuttle/internal/logging"
	"shuttle/internal/spool"
)

// DriveStatus is one watched drive's last sampled state.
type DriveStatus struct {
	Path      string
	FreeBytes uint64
	MinFree   uint64
	Low       bool
}

// ExpiredBatch is one grace sub-batch at or past the grace period.
type ExpiredBatch struct {
	User    string
	Stamp   string
	AgeDays int
	Bytes   int64
}

// Tracker samples drive free space and scans the grace location for expired
// batches. Each sub-scan refreshes at most once per scanInterval.
type Tracker struct {
	drives       []config.DriveWatch
	graceDir     string
	graceDays    int
	scanInterval time.Duration
	logger       *slog.Logger
	statfs       func(path string) (uint64, error)
	now          func() time.Time

	mu            sync.Mutex
	driveStatuses []DriveStatus
	lastDriveScan time.Time
	expired       map[string][]ExpiredBatch
	lastGraceScan time.Time
}

// NewTracker builds a tracker for the configured drives and grace location.
func NewTracker(drives []config.DriveWatch, graceDir string, graceDays int, scanInterval time.Duration, logger *slog.Logger) *Tracker {
	if scanInterval <= 0 {
		scanInterval = 20 * time.Second
	}
	return &Tracker{
		drives:       drives,
		graceDir:     graceDir,
		graceDays:    graceDays,
		scanInterval: scanInterval,
		logger:       logging.NewComponentLogger(logger, "storage"),
		statfs:       freeBytes,
		now:          time.Now,
		expired:      make(map[string][]ExpiredBatch),
	}
}

func freeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// RefreshDrives resamples free space, honoring the rate limit. It returns the
// current statuses either way.
func (t *Tracker) RefreshDrives() []DriveStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.lastDriveScan.IsZero() && now.Sub(t.lastDriveScan) < t.scanInterval {
		return append([]DriveStatus{}, t.driveStatuses...)
	}
	t.lastDriveScan = now

	statuses := make([]DriveStatus, 0, len(t.drives))
	for _, drive := range t.drives {
		minFree := uint64(drive.MinFreeGiB) * humanize.GiByte
		status := DriveStatus{Path: drive.Path, MinFree: minFree}
		free, err := t.statfs(drive.Path)
		if err != nil {
			t.logger.Warn("free-space sample failed",
				logging.String(logging.FieldDrive, drive.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "drive_sample_failed"),
				logging.String(logging.FieldErrorHint, "check that the drive is mounted"),
			)
			// An unreadable drive counts as low; silence would hide an outage.
			status.Low = true
		} else {
			status.FreeBytes = free
			status.Low = free < minFree
		}
		statuses = append(statuses, status)
	}
	t.driveStatuses = statuses
	return append([]DriveStatus{}, statuses...)
}

// InvalidateDrives discards the rate-limit window so the next RefreshDrives
// rescans immediately. Used when a block device appears or disappears.
func (t *Tracker) InvalidateDrives() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastDriveScan = time.Time{}
}

// LowSpace reports whether any watched drive is below its floor, based on the
// last completed scan.
func (t *Tracker) LowSpace() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, status := range t.driveStatuses {
		if status.Low {
			return true
		}
	}
	return false
}

// Summary renders a one-line free-space report for notifications and status.
func (t *Tracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.driveStatuses) == 0 {
		return "no drives watched"
	}
	parts := make([]string, 0, len(t.driveStatuses))
	for _, status := range t.driveStatuses {
		part := fmt.Sprintf("%s: %s free (floor %s)",
			status.Path, humanize.IBytes(status.FreeBytes), humanize.IBytes(status.MinFree))
		if status.Low {
			part += " LOW"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}

// RefreshGrace rescans the grace location for expired batches, honoring the
// rate limit, and returns the expired map of user to sub-batches. A sub-batch
// aged exactly graceDays counts as expired.
func (t *Tracker) RefreshGrace() map[string][]ExpiredBatch {
	t.mu.Lock()
	now := t.now()
	if !t.lastGraceScan.IsZero() && now.Sub(t.lastGraceScan) < t.scanInterval {
		defer t.mu.Unlock()
		return copyExpired(t.expired)
	}
	t.lastGraceScan = now
	t.mu.Unlock()

	expired := t.scanGrace(now)

	t.mu.Lock()
	t.expired = expired
	t.mu.Unlock()
	return copyExpired(expired)
}

// Expired returns the last computed expiry map without rescanning.
func (t *Tracker) Expired() map[string][]ExpiredBatch {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyExpired(t.expired)
}

func (t *Tracker) scanGrace(now time.Time) map[string][]ExpiredBatch {
	expired := make(map[string][]ExpiredBatch)

	userEntries, err := os.ReadDir(t.graceDir)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("grace location scan failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "grace_scan_failed"),
			)
		}
		return expired
	}

	for _, userEntry := range userEntries {
		if !userEntry.IsDir() {
			continue
		}
		user := userEntry.Name()
		userDir := filepath.Join(t.graceDir, user)
		batchEntries, err := os.ReadDir(userDir)
		if err != nil {
			t.logger.Warn("grace user directory unreadable",
				logging.String(logging.FieldUser, user),
				logging.Error(err),
				logging.String(logging.FieldEventType, "grace_scan_failed"),
			)
			continue
		}
		for _, batchEntry := range batchEntries {
			if !batchEntry.IsDir() {
				continue
			}
			age := spool.AgeDays(batchEntry.Name(), now)
			if age == spool.AgeSentinel {
				t.logger.Warn("grace batch name does not parse as a timestamp",
					logging.String(logging.FieldUser, user),
					logging.String(logging.FieldBatch, batchEntry.Name()),
					logging.String(logging.FieldEventType, "batch_stamp_unparsable"),
				)
				continue
			}
			if age < t.graceDays {
				continue
			}
			batchPath := filepath.Join(userDir, batchEntry.Name())
			expired[user] = append(expired[user], ExpiredBatch{
				User:    user,
				Stamp:   batchEntry.Name(),
				AgeDays: age,
				Bytes:   fileutil.DirSize(batchPath),
			})
		}
		sort.Slice(expired[user], func(i, j int) bool {
			return expired[user][i].Stamp < expired[user][j].Stamp
		})
	}
	return expired
}

func copyExpired(in map[string][]ExpiredBatch) map[string][]ExpiredBatch {
	out := make(map[string][]ExpiredBatch, len(in))
	for user, batches := range in {
		out[user] = append([]ExpiredBatch{}, batches...)
	}
	return out
}

// ExpiredSummary renders a human-readable expiry report, one line per user.
func ExpiredSummary(expired map[string][]ExpiredBatch) string {
	if len(expired) == 0 {
		return ""
	}
	users := make([]string, 0, len(expired))
	for user := range expired {
		users = append(users, user)
	}
	sort.Strings(users)

	var b strings.Builder
	for _, user := range users {
		var total int64
		for _, batch := range expired[user] {
			total += batch.Bytes
		}
		fmt.Fprintf(&b, "%s: %d batch(es), %s past grace\n",
			user, len(expired[user]), humanize.IBytes(uint64(total)))
	}
	return strings.TrimRight(b.String(), "\n")
}
