package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"fass-go/internal/fass"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Safe for concurrent use.
type MockFilesystemManager struct {
	mu        sync.Mutex
	files     map[string]*MockFile
	failOpen  map[string]error
	failCopy  map[string]error
	copyCount map[string]int
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:     make(map[string]*MockFile),
		failOpen:  make(map[string]error),
		failCopy:  make(map[string]error),
		copyCount: make(map[string]int),
	}
}

// AddFile adds a file to the mock filesystem. Missing parent directories
// are created.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addParents(path)
	m.files[path] = &MockFile{
		Content:     append([]byte(nil), content...),
		Permissions: 0644,
		ModTime:     time.Now(),
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addParents(path)
	m.addDir(path)
}

func (m *MockFilesystemManager) addDir(path string) {
	if _, ok := m.files[path]; ok {
		return
	}
	m.files[path] = &MockFile{Permissions: 0755, ModTime: time.Now(), IsDirectory: true}
}

func (m *MockFilesystemManager) addParents(path string) {
	for dir := filepath.Dir(path); dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		m.addDir(dir)
	}
}

// Content returns the bytes stored at path.
func (m *MockFilesystemManager) Content(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok || f.IsDirectory {
		return nil, false
	}
	return append([]byte(nil), f.Content...), true
}

// RemoveFile deletes path from the mock filesystem.
func (m *MockFilesystemManager) RemoveFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

// FailOpen makes Open return err for path.
func (m *MockFilesystemManager) FailOpen(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen[path] = err
}

// FailCopy makes CopyFile return err when src is path.
func (m *MockFilesystemManager) FailCopy(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCopy[path] = err
}

// CopyCount returns how many times src was copied successfully.
func (m *MockFilesystemManager) CopyCount(src string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyCount[src]
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*fass.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}
	return fass.NewPath(absPath, file.IsDirectory, newMockFileInfo(absPath, file)), nil
}

func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failOpen[path]; ok {
		return nil, err
	}
	file, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path)
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok, nil
}

func (m *MockFilesystemManager) MkdirAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[path]; ok && !f.IsDirectory {
		return fmt.Errorf("not a directory: %s", path)
	}
	m.addParents(path)
	m.addDir(path)
	return nil
}

// Walk visits root and its descendants in lexical order. Callback errors
// other than filepath.SkipDir abort the walk.
func (m *MockFilesystemManager) Walk(root *fass.Path, fn fass.WalkFunc) error {
	m.mu.Lock()
	var paths []string
	for p := range m.files {
		if p == root.String() || strings.HasPrefix(p, root.String()+"/") {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	entries := make([]fass.WalkEntry, 0, len(paths))
	for _, p := range paths {
		f := m.files[p]
		rel, _ := filepath.Rel(root.String(), p)
		entries = append(entries, fass.WalkEntry{
			Path: fass.NewPath(p, f.IsDirectory, newMockFileInfo(p, f)),
			Rel:  rel,
		})
	}
	m.mu.Unlock()

	var skip []string
	for _, e := range entries {
		if skipped(skip, e.Path.String()) {
			continue
		}
		err := fn(e)
		if errors.Is(err, filepath.SkipDir) {
			skip = append(skip, e.Path.String())
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func skipped(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func (m *MockFilesystemManager) CopyFile(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failCopy[src]; ok {
		return err
	}
	file, ok := m.files[src]
	if !ok || file.IsDirectory {
		return fmt.Errorf("opening source: %w", fs.ErrNotExist)
	}
	m.addParents(dst)
	m.files[dst] = &MockFile{
		Content:     append([]byte(nil), file.Content...),
		Permissions: file.Permissions,
		ModTime:     time.Now(),
	}
	m.copyCount[src]++
	return nil
}

func (m *MockFilesystemManager) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func newMockFileInfo(path string, f *MockFile) *mockFileInfo {
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(f.Content)),
		mode:    f.Permissions,
		modTime: f.ModTime,
		isDir:   f.IsDirectory,
	}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ fass.FilesystemManager = (*MockFilesystemManager)(nil)
