package index

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fass-go/internal/fass"
)

func newTestJSONStore(t *testing.T, path string, timeout time.Duration) *JSONStore {
	t.Helper()
	store, err := NewJSONStore(path, nil, timeout, fass.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

const legacyDocument = `[
  {
    "original_path": "/src/notes.txt",
    "backup_path": "/backup/notes.txt",
    "file_type": "txt",
    "auto_backup": true,
    "backup_time": {"secs": 5, "nanos": 0},
    "backup_frequency": "Minute(s)"
  },
  {
    "original_path": "/src/photo.JPG",
    "backup_path": "/backup/photo.JPG",
    "file_type": "",
    "auto_backup": false,
    "backup_time": {"secs": 0, "nanos": 0},
    "backup_frequency": ""
  }
]`

func TestDecode(t *testing.T) {
	t.Run("empty document", func(t *testing.T) {
		idx, err := decode([]byte("  \n"), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, idx.Len())
		assert.False(t, idx.Migrated)
	})

	t.Run("legacy list is migrated", func(t *testing.T) {
		hashed := map[string]bool{}
		hash := func(p string) (string, error) {
			hashed[p] = true
			return "sum-of-" + filepath.Base(p), nil
		}

		idx, err := decode([]byte(legacyDocument), hash)
		require.NoError(t, err)
		assert.True(t, idx.Migrated)
		require.Equal(t, 2, idx.Len())

		notes := idx.Get("/src/notes.txt")
		require.NotNil(t, notes)
		assert.Equal(t, uint64(5), notes.BackupInterval)
		assert.Equal(t, fass.FrequencyMinutes, notes.BackupFrequency)
		assert.Equal(t, 5*time.Minute, notes.Period())
		assert.Equal(t, "sum-of-notes.txt", notes.Hash)

		photo := idx.Get("/src/photo.JPG")
		require.NotNil(t, photo)
		assert.Equal(t, "jpg", photo.FileType)
		assert.Len(t, hashed, 2)
	})

	t.Run("legacy backup_time without a unit counts hours", func(t *testing.T) {
		doc := `[{"original_path":"/a.txt","backup_path":"/b/a.txt","auto_backup":true,"backup_time":{"secs":3,"nanos":0}}]`
		idx, err := decode([]byte(doc), nil)
		require.NoError(t, err)

		rec := idx.Get("/a.txt")
		require.NotNil(t, rec)
		assert.Equal(t, fass.FrequencyHours, rec.BackupFrequency)
		assert.Equal(t, 3*time.Hour, rec.Period())
	})

	t.Run("legacy duplicates keep the later entry", func(t *testing.T) {
		doc := `[{"original_path":"/a","backup_path":"/b1"},{"original_path":"/a","backup_path":"/b2"}]`
		idx, err := decode([]byte(doc), nil)
		require.NoError(t, err)
		assert.Equal(t, 1, idx.Len())
		assert.Equal(t, "/b2", idx.Get("/a").BackupPath)
	})

	t.Run("keyed document without version", func(t *testing.T) {
		doc := `{"files": {"/a.txt": {"original_path": "/a.txt", "backup_path": "/b/a.txt", "hash": "h"}}}`
		idx, err := decode([]byte(doc), nil)
		require.NoError(t, err)
		assert.False(t, idx.Migrated)
		assert.Equal(t, "h", idx.Get("/a.txt").Hash)
	})

	t.Run("future version is rejected", func(t *testing.T) {
		_, err := decode([]byte(`{"version": 99, "files": {}}`), nil)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := decode([]byte("not json"), nil)
		assert.ErrorIs(t, err, errUnknownFormat)

		_, err = decode([]byte(`{"files": [`), nil)
		assert.Error(t, err)
	})
}

func TestJSONStore_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup_metadata.json")
	store := newTestJSONStore(t, path, 0)

	idx := fass.NewIndex()
	idx.Upsert(&fass.FileRecord{OriginalPath: "/src/a.txt", BackupPath: "/backup/a.txt", FileType: "txt", Hash: "h"})
	require.NoError(t, store.Save(t.Context(), idx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"version\": 2,"), "document should be pretty-printed with 2-space indent")

	var doc document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, DocumentVersion, doc.Version)
	assert.Contains(t, doc.Files, "/src/a.txt")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}
}

func TestJSONStore_LegacyMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup_metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(legacyDocument), 0o644))
	store := newTestJSONStore(t, path, 0)

	idx, err := store.Load(t.Context())
	require.NoError(t, err)
	assert.True(t, idx.Migrated)
	assert.Equal(t, 2, idx.Len())

	// An unchanged update still rewrites a legacy document.
	require.NoError(t, store.Update(t.Context(), func(*fass.Index) (bool, error) { return false, nil }))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(string(data)), "{"))

	idx, err = store.Load(t.Context())
	require.NoError(t, err)
	assert.False(t, idx.Migrated)
	assert.Equal(t, 2, idx.Len())
}

func TestJSONStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backup_metadata.json")
	require.NoError(t, os.WriteFile(path, []byte("{ this is not json"), 0o644))
	store := newTestJSONStore(t, path, 0)
	store.now = func() time.Time { return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC) }

	idx, err := store.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())

	err = store.Update(t.Context(), func(idx *fass.Index) (bool, error) {
		idx.Upsert(&fass.FileRecord{OriginalPath: "/src/a.txt", BackupPath: "/b/a.txt"})
		return true, nil
	})
	require.NoError(t, err)

	quarantined, err := os.ReadFile(path + ".corrupt-20240115T103000Z")
	require.NoError(t, err)
	assert.Equal(t, "{ this is not json", string(quarantined))

	idx, err = store.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestJSONStore_NewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup_metadata.json")
	newer := `{"version": 3, "files": {"/src/a.txt": {"original_path": "/src/a.txt", "backup_path": "/b/a.txt"}}}`
	require.NoError(t, os.WriteFile(path, []byte(newer), 0o644))
	store := newTestJSONStore(t, path, 0)

	_, err := store.Load(t.Context())
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	err = store.Update(t.Context(), func(idx *fass.Index) (bool, error) {
		idx.Upsert(&fass.FileRecord{OriginalPath: "/src/b.txt", BackupPath: "/b/b.txt"})
		return true, nil
	})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, newer, string(data))
	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestJSONStore_LockTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup_metadata.json")
	holder := newTestJSONStore(t, path, time.Second)
	waiter := newTestJSONStore(t, path, 100*time.Millisecond)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- holder.Update(context.Background(), func(*fass.Index) (bool, error) {
			close(locked)
			<-release
			return false, nil
		})
	}()
	<-locked

	err := waiter.Update(t.Context(), func(*fass.Index) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, fass.ErrLockTimeout)

	close(release)
	require.NoError(t, <-done)

	// Once released, the other handle can write.
	require.NoError(t, waiter.Update(t.Context(), func(*fass.Index) (bool, error) { return true, nil }))
}
