package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"fass-go/internal/fass"
)

// JSONStore keeps the index in a single JSON document.
type JSONStore struct {
	path   string
	hash   HashFunc
	logger fass.Logger
	lock   *writeLock
	now    func() time.Time
}

// NewJSONStore creates a store for the document at path. The lock file
// lives next to it as <path>.lock. fsmgr is used to backfill hashes when a
// legacy document is read; it may be nil.
func NewJSONStore(path string, fsmgr fass.FilesystemManager, lockTimeout time.Duration, logger fass.Logger) (*JSONStore, error) {
	if path == "" {
		return nil, fmt.Errorf("index path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	var hash HashFunc
	if fsmgr != nil {
		hash = func(p string) (string, error) { return fass.HashFile(fsmgr, p) }
	}

	return &JSONStore{
		path:   path,
		hash:   hash,
		logger: logger,
		lock:   newWriteLock(path+".lock", lockTimeout),
		now:    time.Now,
	}, nil
}

// Path returns the location of the index document.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the document without taking the write lock. Saves replace the
// file by rename, so a reader always sees a complete document.
// A corrupt document is logged and read as empty.
func (s *JSONStore) Load(ctx context.Context) (*fass.Index, error) {
	idx, err := s.read()
	if err != nil {
		var corrupt *corruptError
		if errors.As(err, &corrupt) {
			s.logger.Error("index document is corrupt, treating as empty", "path", s.path, "error", corrupt.err)
			return fass.NewIndex(), nil
		}
		return nil, err
	}
	return idx, nil
}

// Save overwrites the document with idx.
func (s *JSONStore) Save(ctx context.Context, idx *fass.Index) error {
	release, err := s.lock.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.write(idx)
}

// Update runs fn against the current document while holding the write
// lock. A legacy document is rewritten in the current format even if fn
// changes nothing. A corrupt document is renamed aside first.
func (s *JSONStore) Update(ctx context.Context, fn fass.Mutation) error {
	release, err := s.lock.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	idx, err := s.read()
	if err != nil {
		var corrupt *corruptError
		if !errors.As(err, &corrupt) {
			return err
		}
		if err := s.quarantine(corrupt.err); err != nil {
			return err
		}
		idx = fass.NewIndex()
	}

	changed, err := fn(idx)
	if err != nil {
		return err
	}
	if !changed && !idx.Migrated {
		return nil
	}
	return s.write(idx)
}

// Close releases the lock file handle.
func (s *JSONStore) Close() error {
	return s.lock.close()
}

type corruptError struct {
	err error
}

func (e *corruptError) Error() string {
	return "corrupt index: " + e.err.Error()
}

func (s *JSONStore) read() (*fass.Index, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fass.NewIndex(), nil
		}
		return nil, fmt.Errorf("reading index: %w", err)
	}

	idx, err := decode(data, s.hash)
	if errors.Is(err, ErrUnsupportedVersion) {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if err != nil {
		return nil, &corruptError{err: err}
	}
	if idx.Migrated {
		s.logger.Info("read legacy index document", "path", s.path, "records", idx.Len())
	}
	return idx, nil
}

// quarantine moves a corrupt document out of the way so the next save
// does not destroy it.
func (s *JSONStore) quarantine(cause error) error {
	dest := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(s.path, dest); err != nil {
		return fmt.Errorf("moving corrupt index aside: %w", err)
	}
	s.logger.Error("corrupt index moved aside", "path", s.path, "moved_to", dest, "error", cause)
	return nil
}

// write replaces the document atomically: temp file, fsync, rename.
func (s *JSONStore) write(idx *fass.Index) error {
	data, err := encode(idx)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	idx.Migrated = false
	return nil
}

var _ fass.IndexStore = (*JSONStore)(nil)
