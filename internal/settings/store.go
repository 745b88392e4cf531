// Package settings persists the global auto-backup settings as TOML.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"fass-go/internal/fass"
)

// TOMLStore reads and writes fass.Settings at a fixed path.
type TOMLStore struct {
	path string
}

// NewTOMLStore returns a store for the settings document at path.
func NewTOMLStore(path string) *TOMLStore {
	return &TOMLStore{path: path}
}

// Path returns the location of the settings document.
func (s *TOMLStore) Path() string {
	return s.path
}

// Load returns the stored settings. A missing document yields
// fass.DefaultSettings. Keys absent from the document keep their defaults.
func (s *TOMLStore) Load() (fass.Settings, error) {
	settings := fass.DefaultSettings()
	_, err := toml.DecodeFile(s.path, &settings)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fass.DefaultSettings(), nil
		}
		return fass.Settings{}, fmt.Errorf("reading settings from %s: %w", s.path, err)
	}
	if settings.IntervalMinutes <= 0 {
		settings.IntervalMinutes = fass.DefaultIntervalMinutes
	}
	return settings, nil
}

// Save validates and atomically replaces the settings document.
func (s *TOMLStore) Save(settings fass.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(settings); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

var _ fass.SettingsStore = (*TOMLStore)(nil)
