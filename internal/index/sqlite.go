package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"fass-go/internal/fass"
	"fass-go/internal/index/migrations"
)

// SQLiteStore keeps the index as one row per record. Writers use immediate
// transactions, so SQLite's own locking provides the single-writer guarantee
// across processes.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	lockTimeout time.Duration
}

// NewSQLiteStore opens (and migrates) the database at path.
// path can be a file path or ":memory:".
func NewSQLiteStore(path string, lockTimeout time.Duration) (*SQLiteStore, error) {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := OpenConnection(path, lockTimeout)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating index database: %w", err)
	}
	if err := migrations.Status(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("index schema out of date: %w", err)
	}

	return &SQLiteStore{db: db, path: path, lockTimeout: lockTimeout}, nil
}

// OpenConnection opens a SQLite connection configured for immediate write
// transactions and a busy timeout equal to lockTimeout.
func OpenConnection(path string, lockTimeout time.Duration) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=%d", path, lockTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes
	// writers within the process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*fass.Index, error) {
	return loadRows(ctx, s.db)
}

// Save replaces every row with the records in idx.
func (s *SQLiteStore) Save(ctx context.Context, idx *fass.Index) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM files"); err != nil {
			return fmt.Errorf("clearing files: %w", err)
		}
		for _, rec := range idx.Records() {
			if err := upsertRow(ctx, tx, rec); err != nil {
				return err
			}
		}
		idx.Migrated = false
		return nil
	})
}

// Update applies fn inside one immediate transaction and writes only the
// rows that differ.
func (s *SQLiteStore) Update(ctx context.Context, fn fass.Mutation) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		before, err := loadRows(ctx, tx)
		if err != nil {
			return err
		}
		idx := before.Clone()

		changed, err := fn(idx)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		for _, rec := range idx.Records() {
			if old := before.Get(rec.OriginalPath); old != nil && *old == *rec {
				continue
			}
			if err := upsertRow(ctx, tx, rec); err != nil {
				return err
			}
		}
		for _, rec := range before.Records() {
			if idx.Get(rec.OriginalPath) != nil {
				continue
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE original_path = ?", rec.OriginalPath); err != nil {
				return fmt.Errorf("deleting record: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	beginCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(beginCtx, nil)
	if err != nil {
		if isBusy(err) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s: %v", fass.ErrLockTimeout, s.path, err)
		}
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if isBusy(err) {
			return fmt.Errorf("%w: %s: %v", fass.ErrLockTimeout, s.path, err)
		}
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadRows(ctx context.Context, q querier) (*fass.Index, error) {
	rows, err := q.QueryContext(ctx, `SELECT original_path, backup_path, file_type, hash,
		auto_backup, backup_interval, backup_frequency FROM files`)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	idx := fass.NewIndex()
	for rows.Next() {
		var rec fass.FileRecord
		var interval int64
		var freq string
		if err := rows.Scan(&rec.OriginalPath, &rec.BackupPath, &rec.FileType, &rec.Hash,
			&rec.AutoBackup, &interval, &freq); err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		rec.BackupInterval = uint64(interval)
		rec.BackupFrequency = fass.Frequency(freq)
		idx.Upsert(&rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading file rows: %w", err)
	}
	return idx, nil
}

func upsertRow(ctx context.Context, tx *sql.Tx, rec *fass.FileRecord) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO files
		(original_path, backup_path, file_type, hash, auto_backup, backup_interval, backup_frequency)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(original_path) DO UPDATE SET
			backup_path = excluded.backup_path,
			file_type = excluded.file_type,
			hash = excluded.hash,
			auto_backup = excluded.auto_backup,
			backup_interval = excluded.backup_interval,
			backup_frequency = excluded.backup_frequency`,
		rec.OriginalPath, rec.BackupPath, rec.FileType, rec.Hash,
		rec.AutoBackup, int64(rec.BackupInterval), string(rec.BackupFrequency))
	if err != nil {
		return fmt.Errorf("upserting %s: %w", rec.OriginalPath, err)
	}
	return nil
}

var _ fass.IndexStore = (*SQLiteStore)(nil)
