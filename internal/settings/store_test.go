package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fass-go/internal/fass"
)

func TestTOMLStore(t *testing.T) {
	t.Run("missing document yields defaults", func(t *testing.T) {
		store := NewTOMLStore(filepath.Join(t.TempDir(), "settings.toml"))
		got, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, fass.DefaultSettings(), got)
		assert.False(t, got.AutoBackupEnabled)
		assert.Equal(t, time.Hour, got.Interval())
	})

	t.Run("save then load", func(t *testing.T) {
		store := NewTOMLStore(filepath.Join(t.TempDir(), "nested", "settings.toml"))
		want := fass.Settings{AutoBackupEnabled: true, IntervalMinutes: 15}
		require.NoError(t, store.Save(want))

		got, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("partial document keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "settings.toml")
		require.NoError(t, os.WriteFile(path, []byte("auto_backup_enabled = true\n"), 0o644))

		got, err := NewTOMLStore(path).Load()
		require.NoError(t, err)
		assert.True(t, got.AutoBackupEnabled)
		assert.Equal(t, fass.DefaultIntervalMinutes, got.IntervalMinutes)
	})

	t.Run("non-positive interval is rejected on save", func(t *testing.T) {
		store := NewTOMLStore(filepath.Join(t.TempDir(), "settings.toml"))
		assert.Error(t, store.Save(fass.Settings{AutoBackupEnabled: true, IntervalMinutes: 0}))
	})

	t.Run("interval beyond the maximum is rejected on save", func(t *testing.T) {
		store := NewTOMLStore(filepath.Join(t.TempDir(), "settings.toml"))
		err := store.Save(fass.Settings{AutoBackupEnabled: true, IntervalMinutes: fass.MaxIntervalMinutes + 1})
		assert.ErrorIs(t, err, fass.ErrInvalidInterval)
		assert.NoFileExists(t, store.Path())
	})

	t.Run("malformed document is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "settings.toml")
		require.NoError(t, os.WriteFile(path, []byte("auto_backup_enabled = \n"), 0o644))

		_, err := NewTOMLStore(path).Load()
		assert.Error(t, err)
	})
}
