package index

import (
	"fmt"

	"fass-go/internal/config"
	"fass-go/internal/fass"
)

// NewStoreFromConfig creates an IndexStore implementation based on the index config type.
func NewStoreFromConfig(cfg config.IndexConfig, fsmgr fass.FilesystemManager, logger fass.Logger) (fass.IndexStore, error) {
	switch cfg.Type {
	case "json", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for json index")
		}
		store, err := NewJSONStore(cfg.Path, fsmgr, cfg.LockTimeout, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite index")
		}
		store, err := NewSQLiteStore(cfg.Path, cfg.LockTimeout)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown index type: %s", cfg.Type)
	}
}
