package sysstat

import (
	"os"
	"strings"
)

// InteractiveSessionCount reports the number of logind sessions. A missing
// sessions directory (no systemd-logind, containers) counts as zero: the
// admission policy then treats the host as unattended and never throttles.
func InteractiveSessionCount() int {
	entries, err := os.ReadDir("/run/systemd/sessions")
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		// logind keeps "<id>" state files plus "<id>.ref" fifo links.
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".ref") {
			continue
		}
		count++
	}
	return count
}
