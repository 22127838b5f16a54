package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Validation failures are fatal
// at startup; the daemon refuses to run on a broken configuration.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDestination(); err != nil {
		return err
	}
	if err := c.validateDrives(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.SpoolDir) == "" {
		return errors.New("paths.spool_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateDestination() error {
	if c.Destination.Root == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/shuttle/config.toml"
		}
		return fmt.Errorf("destination.root is required. Edit %s (create with 'shuttle config init')", defaultPath)
	}
	if c.Destination.BandwidthKB < 0 {
		return errors.New("destination.bandwidth_limit_kb must not be negative")
	}
	return nil
}

func (c *Config) validateDrives() error {
	seen := make(map[string]struct{}, len(c.Drives))
	for i, drive := range c.Drives {
		if drive.MinFreeGiB < 0 {
			return fmt.Errorf("drives[%d].min_free_gib must not be negative", i)
		}
		if _, dup := seen[drive.Path]; dup {
			return fmt.Errorf("drives[%d].path %q listed twice", i, drive.Path)
		}
		seen[drive.Path] = struct{}{}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"limits.sample_interval":         c.Limits.SampleInterval,
		"spool.grace_period_days":        c.Spool.GracePeriodDays,
		"workflow.tick_interval":         c.Workflow.TickInterval,
		"workflow.storage_scan_interval": c.Workflow.StorageScanInterval,
		"notifications.request_timeout":  c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Limits.CPUPercent <= 0 || c.Limits.CPUPercent > 100 {
		return errors.New("limits.cpu_percent must be between 1 and 100")
	}
	if c.Limits.CPUProbation <= 0 || c.Limits.DiskProbation <= 0 {
		return errors.New("limits probation cycle counts must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
