package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"fass-go/internal/fass"
)

// DocumentVersion is written into every keyed index document.
const DocumentVersion = 2

// document is the on-disk form of the index.
type document struct {
	Version int                          `json:"version"`
	Files   map[string]*fass.FileRecord `json:"files"`
}

// legacyDuration matches the {secs, nanos} object older versions wrote.
type legacyDuration struct {
	Secs  uint64 `json:"secs"`
	Nanos uint32 `json:"nanos"`
}

// legacyRecord is one element of the version 1 flat list.
type legacyRecord struct {
	OriginalPath    string          `json:"original_path"`
	BackupPath      string          `json:"backup_path"`
	FileType        string          `json:"file_type"`
	Hash            string          `json:"hash"`
	AutoBackup      bool            `json:"auto_backup"`
	BackupTime      *legacyDuration `json:"backup_time"`
	BackupInterval  uint64          `json:"backup_interval"`
	BackupFrequency string          `json:"backup_frequency"`
}

// HashFunc computes the content hash of a file. It is used to backfill
// hashes missing from legacy documents.
type HashFunc func(path string) (string, error)

var errUnknownFormat = errors.New("unrecognized index document")

// ErrUnsupportedVersion is returned for a document written by a newer
// release. Such a document is left untouched.
var ErrUnsupportedVersion = errors.New("unsupported index version")

// decode parses any supported document layout. hash may be nil, in which
// case legacy records without a hash keep an empty one.
func decode(data []byte, hash HashFunc) (*fass.Index, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fass.NewIndex(), nil
	}

	switch trimmed[0] {
	case '[':
		return decodeLegacy(trimmed, hash)
	case '{':
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("parsing index: %w", err)
		}
		if doc.Version > DocumentVersion {
			return nil, fmt.Errorf("%w: %d is newer than %d", ErrUnsupportedVersion, doc.Version, DocumentVersion)
		}
		for _, rec := range doc.Files {
			if rec != nil {
				normalize(rec)
			}
		}
		return fass.IndexFromMap(doc.Files), nil
	default:
		return nil, errUnknownFormat
	}
}

func decodeLegacy(data []byte, hash HashFunc) (*fass.Index, error) {
	var list []legacyRecord
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing legacy index: %w", err)
	}

	idx := fass.NewIndex()
	for _, l := range list {
		if l.OriginalPath == "" {
			continue
		}
		rec := &fass.FileRecord{
			OriginalPath:    l.OriginalPath,
			BackupPath:      l.BackupPath,
			FileType:        l.FileType,
			Hash:            l.Hash,
			AutoBackup:      l.AutoBackup,
			BackupInterval:  l.BackupInterval,
			BackupFrequency: fass.Frequency(l.BackupFrequency),
		}
		if rec.BackupInterval == 0 && l.BackupTime != nil {
			rec.BackupInterval = l.BackupTime.Secs
		}
		normalize(rec)
		if rec.BackupFrequency == "" && rec.BackupInterval > 0 {
			rec.BackupFrequency = fass.FrequencyHours
		}
		if rec.Hash == "" && hash != nil {
			if sum, err := hash(rec.OriginalPath); err == nil {
				rec.Hash = sum
			}
		}
		idx.Upsert(rec)
	}
	idx.Migrated = true
	return idx, nil
}

// normalize fills defaults and canonicalizes the frequency spelling.
func normalize(rec *fass.FileRecord) {
	if rec.FileType == "" {
		rec.FileType = fass.FileTypeOf(rec.OriginalPath)
	}
	if rec.BackupFrequency == "" {
		return
	}
	if f, ok := fass.ParseFrequency(string(rec.BackupFrequency)); ok {
		rec.BackupFrequency = f
	}
}

// encode renders idx as a pretty-printed keyed document.
func encode(idx *fass.Index) ([]byte, error) {
	doc := document{Version: DocumentVersion, Files: idx.Map()}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding index: %w", err)
	}
	return append(data, '\n'), nil
}
