package testsupport

import (
	"context"
	"testing"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/status"
)

// MustOpenStore opens a status.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *status.Store {
	t.Helper()

	store, err := status.Open(cfg.StatusDBPath())
	if err != nil {
		t.Fatalf("status.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustTracker builds a status tracker over the given store.
func MustTracker(t testing.TB, store *status.Store) *status.Tracker {
	t.Helper()

	tracker, err := status.NewTracker(context.Background(), store, logging.NewNop())
	if err != nil {
		t.Fatalf("status.NewTracker: %v", err)
	}
	return tracker
}
