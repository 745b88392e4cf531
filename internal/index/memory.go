package index

import (
	"context"
	"sync"

	"fass-go/internal/fass"
)

// MemoryStore is an in-process IndexStore. Load hands out copies, so
// callers cannot mutate the stored index behind the store's back.
type MemoryStore struct {
	mu  sync.Mutex
	idx *fass.Index
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{idx: fass.NewIndex()}
}

func (s *MemoryStore) Load(ctx context.Context) (*fass.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, idx *fass.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx = idx.Clone()
	s.idx.Migrated = false
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, fn fass.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.idx.Clone()
	changed, err := fn(idx)
	if err != nil {
		return err
	}
	if changed {
		idx.Migrated = false
		s.idx = idx
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ fass.IndexStore = (*MemoryStore)(nil)
