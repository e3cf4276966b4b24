package testsupport

import (
	"context"
	"testing"

	"storyreel/internal/config"
	"storyreel/internal/job"
	"storyreel/internal/model"
)

// MustOpenStore opens a job.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *job.Store {
	t.Helper()

	store, err := job.Open(cfg)
	if err != nil {
		t.Fatalf("job.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a job for tests using the provided store.
func NewJob(t testing.TB, store *job.Store, title, raw string) *job.Job {
	t.Helper()

	j, err := store.New(context.Background(), title, raw, model.Settings{})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return j
}
