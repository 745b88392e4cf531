package fs

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fass-go/internal/fass"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func walkRels(t *testing.T, m *OSFilesystemManager, root string) []string {
	t.Helper()
	p, err := m.Resolve(root)
	require.NoError(t, err)

	var rels []string
	err = m.Walk(p, func(e fass.WalkEntry) error {
		require.NoError(t, e.Err)
		rels = append(rels, filepath.ToSlash(e.Rel))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(rels)
	return rels
}

func TestOSFilesystemManager_Resolve(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	require.NoError(t, os.Symlink(filepath.Join(dir, "a.txt"), filepath.Join(dir, "link")))

	m := NewOSFilesystemManager(nil)

	p, err := m.Resolve(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.False(t, p.IsDir())
	assert.True(t, filepath.IsAbs(p.String()))

	_, err = m.Resolve(filepath.Join(dir, "link"))
	assert.ErrorContains(t, err, "symlinks not supported")

	_, err = m.Resolve(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestOSFilesystemManager_Walk(t *testing.T) {
	t.Run("visits directories and regular files", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "a.txt"), "a")
		writeFile(t, filepath.Join(dir, "sub", "b.txt"), "b")

		got := walkRels(t, NewOSFilesystemManager(nil), dir)
		assert.Equal(t, []string{".", "a.txt", "sub", "sub/b.txt"}, got)
	})

	t.Run("skips symlinks and terminates on cycles", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "sub", "b.txt"), "b")
		require.NoError(t, os.Symlink(dir, filepath.Join(dir, "sub", "loop")))
		require.NoError(t, os.Symlink(filepath.Join(dir, "sub", "b.txt"), filepath.Join(dir, "b-link")))

		got := walkRels(t, NewOSFilesystemManager(nil), dir)
		assert.Equal(t, []string{".", "sub", "sub/b.txt"}, got)
	})

	t.Run("applies config and root ignore patterns", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, IgnoreFileName), "*.tmp\nbuild\n")
		writeFile(t, filepath.Join(dir, "keep.txt"), "k")
		writeFile(t, filepath.Join(dir, "app.log"), "l")
		writeFile(t, filepath.Join(dir, "scratch.tmp"), "t")
		writeFile(t, filepath.Join(dir, "build", "out.o"), "o")

		got := walkRels(t, NewOSFilesystemManager([]string{"*.log"}), dir)
		assert.Equal(t, []string{".", "keep.txt"}, got)
	})

	t.Run("leaves out interrupted copies and quarantined indexes", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "a.txt"), "a")
		writeFile(t, filepath.Join(dir, "sub", ".a.txt.tmp-4821"), "partial")
		writeFile(t, filepath.Join(dir, "backup_metadata.json.corrupt-20240115T103000Z"), "{")

		got := walkRels(t, NewOSFilesystemManager(nil), dir)
		assert.Equal(t, []string{".", "a.txt", "sub"}, got)
	})

	t.Run("invalid ignore file aborts before visiting anything", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, IgnoreFileName), "[oops\n")
		m := NewOSFilesystemManager(nil)
		p, err := m.Resolve(dir)
		require.NoError(t, err)

		visited := 0
		err = m.Walk(p, func(fass.WalkEntry) error { visited++; return nil })
		assert.ErrorContains(t, err, "invalid ignore pattern")
		assert.Zero(t, visited)
	})

	t.Run("callback error aborts the walk", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "a.txt"), "a")
		m := NewOSFilesystemManager(nil)
		p, err := m.Resolve(dir)
		require.NoError(t, err)

		err = m.Walk(p, func(e fass.WalkEntry) error {
			return os.ErrPermission
		})
		assert.ErrorIs(t, err, os.ErrPermission)
	})

	t.Run("rejects a file root", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "a.txt"), "a")
		m := NewOSFilesystemManager(nil)
		p, err := m.Resolve(filepath.Join(dir, "a.txt"))
		require.NoError(t, err)

		err = m.Walk(p, func(fass.WalkEntry) error { return nil })
		assert.ErrorContains(t, err, "not a directory")
	})
}

func TestOSFilesystemManager_CopyFile(t *testing.T) {
	t.Run("creates parents and copies content", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		src := filepath.Join(dir, "src", "a.txt")
		dst := filepath.Join(dir, "backup", "deep", "a.txt")
		writeFile(t, src, "hello")

		m := NewOSFilesystemManager(nil)
		require.NoError(t, m.CopyFile(src, dst))

		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("replaces existing copy and leaves no temp files", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		src := filepath.Join(dir, "a.txt")
		dst := filepath.Join(dir, "out", "a.txt")
		writeFile(t, src, "new content")
		writeFile(t, dst, "old")

		m := NewOSFilesystemManager(nil)
		require.NoError(t, m.CopyFile(src, dst))

		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "new content", string(data))

		entries, err := os.ReadDir(filepath.Dir(dst))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("missing source fails", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		m := NewOSFilesystemManager(nil)
		err := m.CopyFile(filepath.Join(dir, "missing"), filepath.Join(dir, "out"))
		assert.Error(t, err)
		_, statErr := os.Stat(filepath.Join(dir, "out"))
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestOSFilesystemManager_ExistsAndRemove(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "a")
	m := NewOSFilesystemManager(nil)

	ok, err := m.Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Remove(path))
	ok, err = m.Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, m.Remove(path), "removing a missing file is not an error")
}
