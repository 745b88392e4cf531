package fass

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// UnknownFileType is recorded for files without an extension.
const UnknownFileType = "unknown"

// DefaultPeriod is the re-check period used when a record's schedule
// cannot be interpreted.
const DefaultPeriod = time.Hour

// MaxPeriod is the longest schedule accepted for a file or for the global
// loop. Longer intervals are rejected on save and clamped on read.
const MaxPeriod = 10 * 365 * 24 * time.Hour

// Frequency is the unit of a per-file auto-backup interval.
type Frequency string

const (
	FrequencyMinutes Frequency = "minutes"
	FrequencyHours   Frequency = "hours"
	FrequencyDays    Frequency = "days"
)

// ParseFrequency normalizes a unit name. Older index documents spelled the
// units "Minute(s)", "Hour(s)" and "Day(s)"; those are accepted too.
// The second return value is false for unrecognized input.
func ParseFrequency(s string) (Frequency, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minutes", "minute", "minute(s)", "min", "m":
		return FrequencyMinutes, true
	case "hours", "hour", "hour(s)", "h":
		return FrequencyHours, true
	case "days", "day", "day(s)", "d":
		return FrequencyDays, true
	default:
		return Frequency(s), false
	}
}

// Seconds returns the number of seconds in one unit, or 0 if the unit is unknown.
func (f Frequency) Seconds() uint64 {
	switch f {
	case FrequencyMinutes:
		return 60
	case FrequencyHours:
		return 60 * 60
	case FrequencyDays:
		return 60 * 60 * 24
	default:
		return 0
	}
}

// FileRecord describes one tracked file.
type FileRecord struct {
	OriginalPath    string    `json:"original_path"`
	BackupPath      string    `json:"backup_path"`
	FileType        string    `json:"file_type"`
	Hash            string    `json:"hash"`
	AutoBackup      bool      `json:"auto_backup"`
	BackupInterval  uint64    `json:"backup_interval"`
	BackupFrequency Frequency `json:"backup_frequency"`
}

// Period returns how often the per-file scheduler re-checks this record.
// An unknown unit or a zero interval falls back to DefaultPeriod.
func (r *FileRecord) Period() time.Duration {
	unit := r.BackupFrequency.Seconds()
	if unit == 0 || r.BackupInterval == 0 {
		return DefaultPeriod
	}
	if r.BackupInterval > uint64(MaxPeriod/time.Second)/unit {
		return MaxPeriod
	}
	return time.Duration(r.BackupInterval*unit) * time.Second
}

// CheckSchedule validates a per-file interval in the given unit.
func CheckSchedule(interval uint64, unit Frequency) error {
	secs := unit.Seconds()
	if secs == 0 {
		return fmt.Errorf("%w: %q (want minutes, hours or days)", ErrInvalidFrequency, unit)
	}
	if interval == 0 {
		return fmt.Errorf("%w: backup interval must be positive", ErrInvalidInterval)
	}
	if interval > uint64(MaxPeriod/time.Second)/secs {
		return fmt.Errorf("%w: %d %s exceeds %s", ErrInvalidInterval, interval, unit, MaxPeriod)
	}
	return nil
}

// Clone returns a copy of the record.
func (r *FileRecord) Clone() *FileRecord {
	c := *r
	return &c
}

// FileTypeOf returns the lowercase extension of path without the dot,
// or UnknownFileType.
func FileTypeOf(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return UnknownFileType
	}
	return strings.ToLower(ext)
}

// Index is the full set of records keyed by original path.
// It is not safe for concurrent use; IndexStore implementations hand out
// private copies and serialize mutations.
type Index struct {
	files map[string]*FileRecord

	// Migrated is set when the index was loaded from a legacy document
	// and has not been persisted in the current format yet.
	Migrated bool
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{files: make(map[string]*FileRecord)}
}

// IndexFromMap builds an index from a keyed mapping. Keys are replaced by
// each record's OriginalPath so the identity invariant always holds.
func IndexFromMap(files map[string]*FileRecord) *Index {
	idx := NewIndex()
	for key, rec := range files {
		if rec == nil {
			continue
		}
		if rec.OriginalPath == "" {
			rec.OriginalPath = key
		}
		idx.files[rec.OriginalPath] = rec
	}
	return idx
}

// Get returns the record for path, or nil.
func (idx *Index) Get(path string) *FileRecord {
	return idx.files[path]
}

// Upsert inserts or replaces the record keyed by its OriginalPath.
func (idx *Index) Upsert(rec *FileRecord) {
	idx.files[rec.OriginalPath] = rec
}

// Remove deletes the record for path and reports whether it existed.
func (idx *Index) Remove(path string) bool {
	if _, ok := idx.files[path]; !ok {
		return false
	}
	delete(idx.files, path)
	return true
}

// Len returns the number of records.
func (idx *Index) Len() int {
	return len(idx.files)
}

// Records returns all records sorted by original path.
func (idx *Index) Records() []*FileRecord {
	out := make([]*FileRecord, 0, len(idx.files))
	for _, rec := range idx.files {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OriginalPath < out[j].OriginalPath })
	return out
}

// AutoEnabled returns the records with AutoBackup set, sorted by path.
func (idx *Index) AutoEnabled() []*FileRecord {
	var out []*FileRecord
	for _, rec := range idx.Records() {
		if rec.AutoBackup {
			out = append(out, rec)
		}
	}
	return out
}

// FindByBackupPath returns the record whose BackupPath equals path, or nil.
func (idx *Index) FindByBackupPath(path string) *FileRecord {
	for _, rec := range idx.files {
		if rec.BackupPath == path {
			return rec
		}
	}
	return nil
}

// Map returns the underlying mapping for serialization.
func (idx *Index) Map() map[string]*FileRecord {
	return idx.files
}

// Clone returns a deep copy of the index.
func (idx *Index) Clone() *Index {
	c := &Index{files: make(map[string]*FileRecord, len(idx.files)), Migrated: idx.Migrated}
	for k, rec := range idx.files {
		c.files[k] = rec.Clone()
	}
	return c
}

// Equal reports whether both indexes hold the same records.
func (idx *Index) Equal(other *Index) bool {
	if other == nil || len(idx.files) != len(other.files) {
		return false
	}
	for k, rec := range idx.files {
		o, ok := other.files[k]
		if !ok || *o != *rec {
			return false
		}
	}
	return true
}

// Settings is the global scheduling configuration.
type Settings struct {
	AutoBackupEnabled bool `toml:"auto_backup_enabled"`
	IntervalMinutes   int  `toml:"interval_minutes"`
}

// DefaultIntervalMinutes is the global re-check period used when none is set.
const DefaultIntervalMinutes = 60

// DefaultSettings returns settings with auto-backup disabled.
func DefaultSettings() Settings {
	return Settings{IntervalMinutes: DefaultIntervalMinutes}
}

// MaxIntervalMinutes is MaxPeriod expressed in minutes.
const MaxIntervalMinutes = int(MaxPeriod / time.Minute)

// Interval returns the global re-check period, clamped to MaxPeriod.
func (s Settings) Interval() time.Duration {
	if s.IntervalMinutes <= 0 {
		return DefaultIntervalMinutes * time.Minute
	}
	if s.IntervalMinutes > MaxIntervalMinutes {
		return MaxPeriod
	}
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Validate reports settings that cannot be saved.
func (s Settings) Validate() error {
	if s.IntervalMinutes <= 0 || s.IntervalMinutes > MaxIntervalMinutes {
		return fmt.Errorf("%w: interval_minutes must be between 1 and %d, got %d",
			ErrInvalidInterval, MaxIntervalMinutes, s.IntervalMinutes)
	}
	return nil
}
