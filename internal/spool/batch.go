package spool

import (
	"time"
)

// StampLayout is the canonical batch directory name format. It sorts
// lexicographically in time order, which oldest-batch dispatch relies on.
const StampLayout = "2006-01-02__15-04-05"

// AgeSentinel is returned for directory names that do not parse as stamps.
const AgeSentinel = -1

// FormatStamp renders a time as a batch directory name.
func FormatStamp(t time.Time) string {
	return t.Format(StampLayout)
}

// ParseStamp parses a batch directory name. Parsing is strict: anything but
// the canonical layout fails.
func ParseStamp(name string) (time.Time, error) {
	return time.ParseInLocation(StampLayout, name, time.Local)
}

// AgeDays returns the whole days elapsed between the stamp encoded in name
// and ref, or AgeSentinel when name does not parse. Callers log the sentinel;
// it is never an error.
func AgeDays(name string, ref time.Time) int {
	stamp, err := ParseStamp(name)
	if err != nil {
		return AgeSentinel
	}
	age := ref.Sub(stamp)
	if age < 0 {
		return 0
	}
	return int(age.Hours() / 24)
}
