package sysstat

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DiskQueueSampler reports the number of I/O operations currently in progress
// for a block device, read from /proc/diskstats. With no device configured it
// sums every whole device (partitions excluded by the minor-zero heuristic).
type DiskQueueSampler struct {
	statsPath string
	device    string
}

// NewDiskQueueSampler creates a sampler for the named device ("sda"); an
// empty name sums all devices.
func NewDiskQueueSampler(device string) *DiskQueueSampler {
	return &DiskQueueSampler{statsPath: "/proc/diskstats", device: strings.TrimSpace(device)}
}

// Sample returns the in-flight I/O count as a float for the monitor contract.
func (s *DiskQueueSampler) Sample() (float64, error) {
	data, err := os.ReadFile(s.statsPath)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.statsPath, err)
	}

	var depth uint64
	matched := false
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		// major minor name reads ... field 11 (0-based) is I/Os in progress.
		if len(fields) < 12 {
			continue
		}
		name := fields[2]
		if s.device != "" {
			if name != s.device {
				continue
			}
		} else if !isWholeDevice(name, fields[1]) {
			continue
		}
		inflight, err := strconv.ParseUint(fields[11], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse diskstats for %s: %w", name, err)
		}
		depth += inflight
		matched = true
		if s.device != "" {
			break
		}
	}

	if s.device != "" && !matched {
		return 0, fmt.Errorf("device %s not present in %s", s.device, s.statsPath)
	}
	return float64(depth), nil
}

func isWholeDevice(name, minor string) bool {
	if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") {
		return false
	}
	// Partitions of sd/vd/hd devices end in a digit; nvme partitions carry pN.
	if strings.Contains(name, "p") && strings.HasPrefix(name, "nvme") {
		return false
	}
	if len(name) > 0 && name[len(name)-1] >= '0' && name[len(name)-1] <= '9' {
		return strings.HasPrefix(name, "nvme") || minor == "0"
	}
	return true
}
