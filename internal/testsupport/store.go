package testsupport

import (
	"context"
	"testing"
	"time"

	"mediasuite/internal/config"
	"mediasuite/internal/orchestrator"
	"mediasuite/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SaveJob persists a minimal job with the given id and status.
func SaveJob(t testing.TB, st *store.Store, id string, status orchestrator.Status) orchestrator.Job {
	t.Helper()

	job := orchestrator.Job{
		ID:            id,
		FileReference: "/media/" + id + ".mp4",
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}
	if status.Terminal() {
		job.CompletedAt = job.CreatedAt.Add(time.Second)
	}
	if err := st.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("store.SaveJob: %v", err)
	}
	return job
}
