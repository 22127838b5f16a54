package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDrives(); err != nil {
		return err
	}
	c.normalizeDestination()
	c.normalizeLimits()
	c.normalizeSpool()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SpoolDir, err = expandPath(c.Paths.SpoolDir); err != nil {
		return fmt.Errorf("paths.spool_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDrives() error {
	drives := make([]DriveWatch, 0, len(c.Drives))
	for i, drive := range c.Drives {
		path := strings.TrimSpace(drive.Path)
		if path == "" {
			continue
		}
		// Remote destinations are never statfs'd; only expand local paths.
		if !strings.Contains(path, ":") {
			expanded, err := expandPath(path)
			if err != nil {
				return fmt.Errorf("drives[%d].path: %w", i, err)
			}
			path = expanded
		}
		drives = append(drives, DriveWatch{Path: path, MinFreeGiB: drive.MinFreeGiB})
	}
	c.Drives = drives
	return nil
}

func (c *Config) normalizeDestination() {
	c.Destination.Root = strings.TrimSpace(c.Destination.Root)
	c.Destination.RsyncBinary = strings.TrimSpace(c.Destination.RsyncBinary)
	if c.Destination.RsyncBinary == "" {
		c.Destination.RsyncBinary = defaultRsyncBinary
	}
	options := make([]string, 0, len(c.Destination.Options))
	for _, opt := range c.Destination.Options {
		if trimmed := strings.TrimSpace(opt); trimmed != "" {
			options = append(options, trimmed)
		}
	}
	c.Destination.Options = options
}

func (c *Config) normalizeLimits() {
	if c.Limits.CPUPercent <= 0 {
		c.Limits.CPUPercent = defaultCPUPercent
	}
	if c.Limits.CPUProbation <= 0 {
		c.Limits.CPUProbation = defaultCPUProbation
	}
	if c.Limits.DiskQueueDepth <= 0 {
		c.Limits.DiskQueueDepth = defaultDiskQueueDepth
	}
	if c.Limits.DiskProbation <= 0 {
		c.Limits.DiskProbation = defaultDiskProbation
	}
	if c.Limits.SampleInterval <= 0 {
		c.Limits.SampleInterval = defaultSampleInterval
	}
	if c.Limits.MinFreeMemoryMiB <= 0 {
		c.Limits.MinFreeMemoryMiB = defaultMinFreeMemoryMiB
	}
	c.Limits.DiskDevice = strings.TrimSpace(c.Limits.DiskDevice)
	procs := make([]string, 0, len(c.Limits.BlacklistProcesses))
	seen := make(map[string]struct{}, len(c.Limits.BlacklistProcesses))
	for _, name := range c.Limits.BlacklistProcesses {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		procs = append(procs, normalized)
	}
	c.Limits.BlacklistProcesses = procs
}

func (c *Config) normalizeSpool() {
	c.Spool.MarkerFilename = strings.TrimSpace(c.Spool.MarkerFilename)
	if c.Spool.MarkerFilename == "" {
		c.Spool.MarkerFilename = defaultMarkerFilename
	}
	if c.Spool.GracePeriodDays <= 0 {
		c.Spool.GracePeriodDays = defaultGracePeriodDays
	}
	if c.Spool.CooldownCycles < 0 {
		c.Spool.CooldownCycles = defaultCooldownCycles
	}
	if c.Spool.AccountRefreshInterval <= 0 {
		c.Spool.AccountRefreshInterval = defaultAccountRefreshInterval
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.TickInterval <= 0 {
		c.Workflow.TickInterval = defaultTickInterval
	}
	if c.Workflow.StorageScanInterval <= 0 {
		c.Workflow.StorageScanInterval = defaultStorageScanInterval
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.StorageDeltaMinutes <= 0 {
		c.Notifications.StorageDeltaMinutes = defaultStorageDeltaMinutes
	}
	if c.Notifications.AdminDeltaMinutes <= 0 {
		c.Notifications.AdminDeltaMinutes = defaultAdminDeltaMinutes
	}
	if c.Notifications.GraceDeltaMinutes <= 0 {
		c.Notifications.GraceDeltaMinutes = defaultGraceDeltaMinutes
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
