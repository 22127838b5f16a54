package transfer

import (
	"testing"
	"time"
)

func TestBackoffInterval(t *testing.T) {
	nominal := 30 * time.Second
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 30 * time.Second},
		{1, 300 * time.Second},
		{2, 3000 * time.Second},
		{3, 30000 * time.Second},
		{4, 12 * time.Hour},
		{10, 12 * time.Hour},
	}
	for _, tc := range tests {
		if got := backoffInterval(nominal, tc.failures); got != tc.want {
			t.Fatalf("backoffInterval(%v, %d) = %v, want %v", nominal, tc.failures, got, tc.want)
		}
	}
}

func TestBackoffCapsLargeNominal(t *testing.T) {
	if got := backoffInterval(11*time.Hour, 1); got != 12*time.Hour {
		t.Fatalf("expected cap at 12h, got %v", got)
	}
}
