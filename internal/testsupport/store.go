package testsupport

import (
	"testing"

	"spool/internal/config"
	"spool/internal/joblog"
)

// MustOpenHistory opens the job history for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *joblog.Store {
	t.Helper()
	store, err := joblog.Open(cfg)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
