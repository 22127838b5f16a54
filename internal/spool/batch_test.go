package spool_test

import (
	"testing"
	"time"

	"shuttle/internal/spool"
)

func TestAgeDays(t *testing.T) {
	ref := time.Date(2024, 2, 10, 0, 0, 0, 0, time.Local)

	tests := []struct {
		name string
		want int
	}{
		{"2024-01-01__00-00-00", 40},
		{"2024-02-09__00-00-00", 1},
		{"2024-02-10__00-00-00", 0},
		{"2024-03-01__00-00-00", 0}, // future stamps clamp to zero
		{"not-a-timestamp", spool.AgeSentinel},
		{"2024-01-01", spool.AgeSentinel},
		{"", spool.AgeSentinel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := spool.AgeDays(tc.name, ref); got != tc.want {
				t.Fatalf("AgeDays(%q) = %d, want %d", tc.name, got, tc.want)
			}
		})
	}
}

func TestStampRoundTrip(t *testing.T) {
	stamp := time.Date(2024, 6, 15, 13, 45, 9, 0, time.Local)
	name := spool.FormatStamp(stamp)
	if name != "2024-06-15__13-45-09" {
		t.Fatalf("FormatStamp = %q", name)
	}
	parsed, err := spool.ParseStamp(name)
	if err != nil {
		t.Fatalf("ParseStamp failed: %v", err)
	}
	if !parsed.Equal(stamp) {
		t.Fatalf("round trip mismatch: %v != %v", parsed, stamp)
	}
}
