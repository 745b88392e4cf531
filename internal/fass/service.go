package fass

import (
	"context"
	"fmt"
	"path/filepath"
)

// BackupReport summarizes one initial or manual sync.
type BackupReport struct {
	Copied  int
	Skipped int
	Failed  int
	Dirs    int
}

// BackupService is the backup engine. It decides which files need copying
// by comparing content hashes against the index, mirrors them under the
// backup root, and records the outcome in the IndexStore.
type BackupService struct {
	store      IndexStore
	fsmgr      FilesystemManager
	logger     Logger
	backupRoot string
}

// NewBackupService creates a new BackupService with the provided dependencies.
// backupRoot must be an absolute path.
func NewBackupService(store IndexStore, fsmgr FilesystemManager, backupRoot string, logger Logger) *BackupService {
	return &BackupService{
		store:      store,
		fsmgr:      fsmgr,
		logger:     logger,
		backupRoot: filepath.Clean(backupRoot),
	}
}

// Backup mirrors sourceRoot into the backup root. Files whose content hash
// matches their record are skipped; everything else is copied in full.
// Per-file failures are logged and counted, they never abort the walk.
// Nothing is ever pruned from the backup side.
func (s *BackupService) Backup(ctx context.Context, sourceRoot *Path) (*BackupReport, error) {
	if !sourceRoot.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", sourceRoot.String())
	}

	if err := s.fsmgr.MkdirAll(s.backupRoot); err != nil {
		return nil, fmt.Errorf("creating backup root: %w", err)
	}

	current, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}

	report := &BackupReport{}
	updates := make(map[string]*FileRecord)

	err = s.fsmgr.Walk(sourceRoot, func(e WalkEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.Err != nil {
			if e.Rel == "." {
				return fmt.Errorf("source root is unreadable: %w", e.Err)
			}
			s.logger.Warn("skipping unreadable path", "path", e.Rel, "error", e.Err)
			report.Failed++
			return nil
		}

		src := e.Path.String()
		if e.Path.IsDir() && s.isBackupRoot(src) {
			s.logger.Info("skipping backup root inside source", "path", src)
			return filepath.SkipDir
		}

		dest := filepath.Join(s.backupRoot, e.Rel)
		if e.Path.IsDir() {
			if err := s.fsmgr.MkdirAll(dest); err != nil {
				s.logger.Warn("creating backup directory failed", "path", dest, "error", err)
				report.Failed++
				return nil
			}
			report.Dirs++
			return nil
		}

		if rec := s.backupFile(src, dest, current.Get(src), report); rec != nil {
			updates[src] = rec
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walking %s: %w", sourceRoot.String(), err)
	}

	err = s.store.Update(ctx, func(idx *Index) (bool, error) {
		changed := false
		for path, rec := range updates {
			if existing := idx.Get(path); existing != nil {
				rec.AutoBackup = existing.AutoBackup
				rec.BackupInterval = existing.BackupInterval
				rec.BackupFrequency = existing.BackupFrequency
				if *existing == *rec {
					continue
				}
			}
			idx.Upsert(rec)
			changed = true
		}
		return changed, nil
	})
	if err != nil {
		return report, fmt.Errorf("saving index: %w", err)
	}

	s.logger.Info("backup complete",
		"source", sourceRoot.String(),
		"copied", report.Copied,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, nil
}

// backupFile copies one file if its content changed and returns the record
// to store for it. A nil record means the index must not change for src:
// either the copy failed or the hash could not be computed.
func (s *BackupService) backupFile(src, dest string, existing *FileRecord, report *BackupReport) *FileRecord {
	newHash, hashErr := HashFile(s.fsmgr, src)
	if hashErr != nil {
		s.logger.Warn("hash unavailable, copying anyway", "path", src, "error", hashErr)
	}

	shouldCopy := existing == nil || existing.Hash == "" || hashErr != nil || newHash != existing.Hash
	if !shouldCopy {
		s.logger.Debug("unchanged", "path", src)
		report.Skipped++
		return &FileRecord{
			OriginalPath: src,
			BackupPath:   dest,
			FileType:     FileTypeOf(src),
			Hash:         newHash,
		}
	}

	if err := s.fsmgr.CopyFile(src, dest); err != nil {
		s.logger.Warn("copy failed", "path", src, "error", err)
		report.Failed++
		return nil
	}
	s.logger.Info("file backed up", "path", src, "dest", dest)
	report.Copied++

	if hashErr != nil {
		return nil
	}
	return &FileRecord{
		OriginalPath: src,
		BackupPath:   dest,
		FileType:     FileTypeOf(src),
		Hash:         newHash,
	}
}

func (s *BackupService) isBackupRoot(path string) bool {
	return filepath.Clean(path) == s.backupRoot
}

// BackupNow re-validates every existing record and copies the files whose
// content changed. It does not discover new files. Records whose original
// has disappeared are kept, since removable storage may come back later.
// It returns the number of files copied.
func (s *BackupService) BackupNow(ctx context.Context) (int, error) {
	idx, err := s.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading index: %w", err)
	}

	s.logger.Info("running immediate backup", "records", idx.Len())

	hashes := make(map[string]string)
	for _, rec := range idx.Records() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		newHash, copied := s.resync(rec)
		if copied {
			hashes[rec.OriginalPath] = newHash
		}
	}

	if len(hashes) > 0 {
		if err := s.store.Update(ctx, setHashes(hashes)); err != nil {
			return 0, fmt.Errorf("saving index: %w", err)
		}
	}

	s.logger.Info("immediate backup complete", "copied", len(hashes))
	return len(hashes), nil
}

// ResyncRecord runs the BackupNow check for a single record.
// It reports whether the file was copied.
func (s *BackupService) ResyncRecord(ctx context.Context, path string) (bool, error) {
	idx, err := s.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("loading index: %w", err)
	}
	rec := idx.Get(path)
	if rec == nil {
		return false, fmt.Errorf("%w: %s", ErrRecordNotFound, path)
	}

	newHash, copied := s.resync(rec)
	if !copied {
		return false, nil
	}
	if err := s.store.Update(ctx, setHashes(map[string]string{path: newHash})); err != nil {
		return true, fmt.Errorf("saving index: %w", err)
	}
	return true, nil
}

// resync copies rec's original if its content no longer matches the
// recorded hash. It returns the new hash and whether a copy happened.
func (s *BackupService) resync(rec *FileRecord) (string, bool) {
	exists, err := s.fsmgr.Exists(rec.OriginalPath)
	if err != nil {
		s.logger.Warn("cannot stat original", "path", rec.OriginalPath, "error", err)
		return "", false
	}
	if !exists {
		s.logger.Warn("original file missing", "path", rec.OriginalPath)
		return "", false
	}

	current, err := HashFile(s.fsmgr, rec.OriginalPath)
	if err != nil {
		s.logger.Warn("hash check failed", "path", rec.OriginalPath, "error", err)
		return "", false
	}
	if rec.Hash != "" && current == rec.Hash {
		s.logger.Debug("no changes", "path", rec.OriginalPath)
		return "", false
	}

	if err := s.fsmgr.CopyFile(rec.OriginalPath, rec.BackupPath); err != nil {
		s.logger.Warn("backup error", "path", rec.OriginalPath, "error", err)
		return "", false
	}
	s.logger.Info("file backed up", "path", rec.OriginalPath, "dest", rec.BackupPath)
	return current, true
}

// setHashes returns a Mutation recording new content hashes. Records that
// were removed concurrently are left alone.
func setHashes(hashes map[string]string) Mutation {
	return func(idx *Index) (bool, error) {
		changed := false
		for path, sum := range hashes {
			rec := idx.Get(path)
			if rec == nil || rec.Hash == sum {
				continue
			}
			rec.Hash = sum
			changed = true
		}
		return changed, nil
	}
}

// DeleteSelected removes a single backup copy if it exists. The caller
// is responsible for removing the record as well; see Forget.
func (s *BackupService) DeleteSelected(backupPath string) error {
	exists, err := s.fsmgr.Exists(backupPath)
	if err != nil {
		return fmt.Errorf("checking %s: %w", backupPath, err)
	}
	if !exists {
		return nil
	}
	if err := s.fsmgr.Remove(backupPath); err != nil {
		return fmt.Errorf("deleting %s: %w", backupPath, err)
	}
	s.logger.Info("backup copy deleted", "path", backupPath)
	return nil
}

// Forget deletes the backup copy of a file and drops its record.
// path may be either the original or the backup location.
func (s *BackupService) Forget(ctx context.Context, path string) (*FileRecord, error) {
	idx, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}
	rec := lookup(idx, path)
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, path)
	}

	if err := s.DeleteSelected(rec.BackupPath); err != nil {
		return nil, err
	}

	err = s.store.Update(ctx, func(idx *Index) (bool, error) {
		return idx.Remove(rec.OriginalPath), nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving index: %w", err)
	}
	return rec, nil
}

// Records returns every tracked file, sorted by original path.
func (s *BackupService) Records(ctx context.Context) ([]*FileRecord, error) {
	idx, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}
	return idx.Records(), nil
}

// SetAutoBackup changes the per-file schedule of a tracked file.
// interval and frequency are ignored when disabling.
func (s *BackupService) SetAutoBackup(ctx context.Context, path string, enabled bool, interval uint64, frequency string) (*FileRecord, error) {
	var unit Frequency
	if enabled {
		var ok bool
		unit, ok = ParseFrequency(frequency)
		if !ok {
			return nil, fmt.Errorf("%w: %q (want minutes, hours or days)", ErrInvalidFrequency, frequency)
		}
		if err := CheckSchedule(interval, unit); err != nil {
			return nil, err
		}
	}

	var updated *FileRecord
	err := s.store.Update(ctx, func(idx *Index) (bool, error) {
		rec := lookup(idx, path)
		if rec == nil {
			return false, fmt.Errorf("%w: %s", ErrRecordNotFound, path)
		}
		before := *rec
		rec.AutoBackup = enabled
		if enabled {
			rec.BackupInterval = interval
			rec.BackupFrequency = unit
		}
		updated = rec.Clone()
		return *rec != before, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("auto-backup updated", "path", updated.OriginalPath, "enabled", enabled, "period", updated.Period().String())
	return updated, nil
}

// MigrateIndex persists an index that was read from a legacy document.
// It reports whether a migration was written.
func (s *BackupService) MigrateIndex(ctx context.Context) (bool, error) {
	migrated := false
	err := s.store.Update(ctx, func(idx *Index) (bool, error) {
		migrated = idx.Migrated
		return idx.Migrated, nil
	})
	if err != nil {
		return false, fmt.Errorf("migrating index: %w", err)
	}
	return migrated, nil
}

// lookup finds a record by original path, then by backup path.
func lookup(idx *Index, path string) *FileRecord {
	path = filepath.Clean(path)
	if rec := idx.Get(path); rec != nil {
		return rec
	}
	return idx.FindByBackupPath(path)
}
