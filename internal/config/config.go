package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	SpoolDir string `toml:"spool_dir"`
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Destination describes the remote target served by the bulk-copy tool.
type Destination struct {
	Root        string   `toml:"root"`
	RsyncBinary string   `toml:"rsync_binary"`
	Options     []string `toml:"options"`
	BandwidthKB int      `toml:"bandwidth_limit_kb"`
}

// DriveWatch pairs a watched mount point with its free-space floor.
type DriveWatch struct {
	Path       string `toml:"path"`
	MinFreeGiB int    `toml:"min_free_gib"`
}

// Limits contains admission-control thresholds.
type Limits struct {
	CPUPercent         float64  `toml:"cpu_percent"`
	CPUProbation       int      `toml:"cpu_probation"`
	DiskQueueDepth     float64  `toml:"disk_queue_depth"`
	DiskProbation      int      `toml:"disk_probation"`
	DiskDevice         string   `toml:"disk_device"`
	SampleInterval     int      `toml:"sample_interval"`
	MinFreeMemoryMiB   int      `toml:"min_free_memory_mib"`
	BlacklistProcesses []string `toml:"blacklist_processes"`
}

// Spool contains spool queue behavior settings.
type Spool struct {
	MarkerFilename         string `toml:"marker_filename"`
	GracePeriodDays        int    `toml:"grace_period_days"`
	CooldownCycles         int    `toml:"cooldown_cycles"`
	AccountRefreshInterval int    `toml:"account_refresh_interval"`
}

// Workflow contains daemon timing settings.
type Workflow struct {
	TickInterval        int `toml:"tick_interval"`
	StorageScanInterval int `toml:"storage_scan_interval"`
}

// Notifications contains ntfy push notification settings. The delta values
// throttle each notification category to at most one message per interval.
type Notifications struct {
	NtfyTopic           string `toml:"ntfy_topic"`
	RequestTimeout      int    `toml:"request_timeout"`
	StorageDeltaMinutes int    `toml:"storage_delta_minutes"`
	AdminDeltaMinutes   int    `toml:"admin_delta_minutes"`
	GraceDeltaMinutes   int    `toml:"grace_delta_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shuttle.
//
// Configuration sections by subsystem:
//   - Paths: spool root, log, and state directories
//   - Destination: bulk-copy target and rsync invocation settings
//   - Drives: watched mount points with free-space floors
//   - Limits: admission-control thresholds and probation cycles
//   - Spool: marker filename, grace period, dispatch cool-down
//   - Workflow: tick and scan intervals
//   - Notifications: ntfy settings and per-category throttle deltas
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Destination   Destination   `toml:"destination"`
	Drives        []DriveWatch  `toml:"drives"`
	Limits        Limits        `toml:"limits"`
	Spool         Spool         `toml:"spool"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shuttle/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories shuttle needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SpoolDir, c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StatusDBPath returns the path of the persisted status database.
func (c *Config) StatusDBPath() string {
	return filepath.Join(c.Paths.StateDir, "status.db")
}

// LockPath returns the path of the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "shuttled.lock")
}

// SocketPath returns the path of the daemon control socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "shuttled.sock")
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
