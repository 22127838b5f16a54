package config

const (
	defaultSpoolDir               = "~/.local/share/shuttle/spool"
	defaultLogDir                 = "~/.local/share/shuttle/logs"
	defaultStateDir               = "~/.local/share/shuttle/state"
	defaultRsyncBinary            = "rsync"
	defaultCPUPercent             = 25
	defaultCPUProbation           = 4
	defaultDiskQueueDepth         = 2
	defaultDiskProbation          = 4
	defaultSampleInterval         = 5
	defaultMinFreeMemoryMiB       = 512
	defaultMarkerFilename         = ".shuttle-empty"
	defaultGracePeriodDays        = 30
	defaultCooldownCycles         = 3
	defaultAccountRefreshInterval = 300
	defaultTickInterval           = 30
	defaultStorageScanInterval    = 20
	defaultNotifyRequestTimeout   = 10
	defaultStorageDeltaMinutes    = 240
	defaultAdminDeltaMinutes      = 60
	defaultGraceDeltaMinutes      = 1440
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SpoolDir: defaultSpoolDir,
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Destination: Destination{
			RsyncBinary: defaultRsyncBinary,
		},
		Limits: Limits{
			CPUPercent:       defaultCPUPercent,
			CPUProbation:     defaultCPUProbation,
			DiskQueueDepth:   defaultDiskQueueDepth,
			DiskProbation:    defaultDiskProbation,
			SampleInterval:   defaultSampleInterval,
			MinFreeMemoryMiB: defaultMinFreeMemoryMiB,
		},
		Spool: Spool{
			MarkerFilename:         defaultMarkerFilename,
			GracePeriodDays:        defaultGracePeriodDays,
			CooldownCycles:         defaultCooldownCycles,
			AccountRefreshInterval: defaultAccountRefreshInterval,
		},
		Workflow: Workflow{
			TickInterval:        defaultTickInterval,
			StorageScanInterval: defaultStorageScanInterval,
		},
		Notifications: Notifications{
			RequestTimeout:      defaultNotifyRequestTimeout,
			StorageDeltaMinutes: defaultStorageDeltaMinutes,
			AdminDeltaMinutes:   defaultAdminDeltaMinutes,
			GraceDeltaMinutes:   defaultGraceDeltaMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
