package sysstat

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// CPUSampler reports aggregate CPU busy percentage between consecutive calls.
// The first call primes the counters and reports zero.
type CPUSampler struct {
	statPath string

	mu        sync.Mutex
	prevBusy  uint64
	prevTotal uint64
	primed    bool
}

// NewCPUSampler creates a sampler reading /proc/stat.
func NewCPUSampler() *CPUSampler {
	return &CPUSampler{statPath: "/proc/stat"}
}

// Sample returns the busy percentage over the interval since the previous call.
func (s *CPUSampler) Sample() (float64, error) {
	busy, total, err := readCPUCounters(s.statPath)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.primed {
		s.prevBusy, s.prevTotal = busy, total
		s.primed = true
		return 0, nil
	}

	deltaBusy := busy - s.prevBusy
	deltaTotal := total - s.prevTotal
	s.prevBusy, s.prevTotal = busy, total

	if deltaTotal == 0 {
		return 0, nil
	}
	return 100 * float64(deltaBusy) / float64(deltaTotal), nil
}

func readCPUCounters(path string) (busy, total uint64, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		values := make([]uint64, 0, len(fields)-1)
		for _, field := range fields[1:] {
			value, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				return 0, 0, fmt.Errorf("parse cpu counter %q: %w", field, err)
			}
			values = append(values, value)
		}
		for i, value := range values {
			total += value
			// Fields 4 (idle) and 5 (iowait) are not busy time.
			if i != 3 && i != 4 {
				busy += value
			}
		}
		return busy, total, nil
	}
	return 0, 0, fmt.Errorf("no aggregate cpu line in %s", path)
}
