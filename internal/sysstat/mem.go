package sysstat

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// AvailableMemoryMiB reports the kernel's MemAvailable estimate in MiB,
// falling back to sysinfo free+buffers when /proc/meminfo is unreadable.
func AvailableMemoryMiB() (int64, error) {
	if mib, err := memAvailableFromMeminfo("/proc/meminfo"); err == nil {
		return mib, nil
	}

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("sysinfo: %w", err)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	free := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	return int64(free / (1024 * 1024)), nil
}

func memAvailableFromMeminfo(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kib, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse MemAvailable: %w", err)
		}
		return kib / 1024, nil
	}
	return 0, fmt.Errorf("MemAvailable not present in %s", path)
}
