package sysstat

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCPUSamplerComputesBusyDelta(t *testing.T) {
	first := "cpu  100 0 100 800 0 0 0 0 0 0\ncpu0 100 0 100 800 0 0 0 0 0 0\n"
	second := "cpu  150 0 150 900 0 0 0 0 0 0\ncpu0 150 0 150 900 0 0 0 0 0 0\n"

	path := writeFile(t, "stat", first)
	sampler := &CPUSampler{statPath: path}

	value, err := sampler.Sample()
	if err != nil {
		t.Fatalf("priming sample failed: %v", err)
	}
	if value != 0 {
		t.Fatalf("priming sample = %v, want 0", value)
	}

	if err := os.WriteFile(path, []byte(second), 0o644); err != nil {
		t.Fatalf("rewrite stat: %v", err)
	}
	value, err = sampler.Sample()
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	// Busy delta 100 over total delta 200.
	if value != 50 {
		t.Fatalf("Sample = %v, want 50", value)
	}
}

func TestDiskQueueSamplerReadsInflight(t *testing.T) {
	stats := "   8       0 sda 100 0 200 300 400 0 500 600 7 800 900\n" +
		"   8       1 sda1 10 0 20 30 40 0 50 60 1 80 90\n"
	path := writeFile(t, "diskstats", stats)

	sampler := &DiskQueueSampler{statsPath: path, device: "sda"}
	value, err := sampler.Sample()
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if value != 7 {
		t.Fatalf("Sample = %v, want 7", value)
	}
}

func TestDiskQueueSamplerMissingDevice(t *testing.T) {
	path := writeFile(t, "diskstats", "   8       0 sda 1 0 1 1 1 0 1 1 2 1 1\n")
	sampler := &DiskQueueSampler{statsPath: path, device: "sdz"}
	if _, err := sampler.Sample(); err == nil {
		t.Fatal("expected error for absent device")
	}
}

func TestMemAvailableFromMeminfo(t *testing.T) {
	path := writeFile(t, "meminfo", "MemTotal:       16000000 kB\nMemAvailable:    2048000 kB\n")
	mib, err := memAvailableFromMeminfo(path)
	if err != nil {
		t.Fatalf("memAvailableFromMeminfo failed: %v", err)
	}
	if mib != 2000 {
		t.Fatalf("MemAvailable = %d MiB, want 2000", mib)
	}
}
