package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"shuttle/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The destination root exists on disk so DirResolver-based account matching
// works out of the box.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SpoolDir = filepath.Join(base, "spool")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Destination.Root = filepath.Join(base, "dest")

	builder := &configBuilder{t: t, cfg: &cfgVal}
	if err := os.MkdirAll(cfgVal.Destination.Root, 0o755); err != nil {
		t.Fatalf("mkdir destination root: %v", err)
	}
	if err := cfgVal.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithDestinationAccounts pre-creates account directories under the
// destination root.
func WithDestinationAccounts(names ...string) ConfigOption {
	return func(b *configBuilder) {
		for _, name := range names {
			if err := os.MkdirAll(filepath.Join(b.cfg.Destination.Root, name), 0o755); err != nil {
				b.t.Fatalf("mkdir destination account %s: %v", name, err)
			}
		}
	}
}

// WithDrive adds a watched drive entry to the test config.
func WithDrive(path string, minFreeGiB int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Drives = append(b.cfg.Drives, config.DriveWatch{Path: path, MinFreeGiB: minFreeGiB})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SpoolDir)
}
