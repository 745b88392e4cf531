package testutil

import (
	"path/filepath"
	"testing"

	"fass-go/internal/fass"
	"fass-go/internal/index"
)

// NewTestIndexStore creates a new in-memory SQLite index store with the
// schema applied. The store is automatically closed when the test completes.
func NewTestIndexStore(t *testing.T) fass.IndexStore {
	t.Helper()

	store, err := index.NewSQLiteStore(":memory:", 0)
	if err != nil {
		t.Fatalf("failed to open index store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTestJSONStore creates a JSON index store in a temp directory.
func NewTestJSONStore(t *testing.T, fsmgr fass.FilesystemManager) *index.JSONStore {
	t.Helper()

	store, err := index.NewJSONStore(filepath.Join(t.TempDir(), "backup_metadata.json"), fsmgr, 0, fass.NewNopLogger())
	if err != nil {
		t.Fatalf("failed to create json store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedIndex writes records into store, failing the test on error.
func SeedIndex(t *testing.T, store fass.IndexStore, records ...*fass.FileRecord) {
	t.Helper()

	idx := fass.NewIndex()
	for _, rec := range records {
		idx.Upsert(rec.Clone())
	}
	if err := store.Save(t.Context(), idx); err != nil {
		t.Fatalf("seeding index: %v", err)
	}
}
