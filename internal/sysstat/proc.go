package sysstat

import (
	"os"
	"strconv"
	"strings"
)

// ProcessNames returns the lowercase comm names of all running processes.
func ProcessNames() (map[string]struct{}, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	names := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(entry.Name()); err != nil {
			continue
		}
		comm, err := os.ReadFile("/proc/" + entry.Name() + "/comm")
		if err != nil {
			// Process exited mid-scan.
			continue
		}
		name := strings.ToLower(strings.TrimSpace(string(comm)))
		if name != "" {
			names[name] = struct{}{}
		}
	}
	return names, nil
}

// AnyProcessRunning reports whether any of the given lowercase names is among
// the running processes, returning the first match.
func AnyProcessRunning(names []string) (string, bool, error) {
	if len(names) == 0 {
		return "", false, nil
	}
	running, err := ProcessNames()
	if err != nil {
		return "", false, err
	}
	for _, name := range names {
		if _, ok := running[name]; ok {
			return name, true, nil
		}
	}
	return "", false, nil
}
