package fass

import "context"

// Mutation edits an index in place. It reports whether anything changed;
// an unchanged index is not written back.
type Mutation func(idx *Index) (changed bool, err error)

// IndexStore is the durable home of the Index.
//
// Implementations serialize every write behind a single-writer lock that
// covers the whole read-modify-persist sequence. Concurrent full-document
// saves would otherwise silently drop each other's records.
type IndexStore interface {
	// Load returns a private snapshot of the persisted index.
	// A missing document yields an empty index, not an error.
	Load(ctx context.Context) (*Index, error)

	// Save overwrites the persisted document with idx.
	Save(ctx context.Context, idx *Index) error

	// Update loads the current index under the write lock, applies fn and
	// persists the result if fn reports a change.
	Update(ctx context.Context, fn Mutation) error

	// Close releases the store's resources.
	Close() error
}

// SettingsStore loads and saves the global scheduling settings.
type SettingsStore interface {
	// Load returns the persisted settings, or DefaultSettings if none exist.
	Load() (Settings, error)
	Save(s Settings) error
}
