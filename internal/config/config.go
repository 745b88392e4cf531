package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Default file names under the base and work directories.
const (
	IndexFileName       = "backup_metadata.json"
	SQLiteIndexFileName = "fass.db"
	SettingsFileName    = "settings.toml"
	PIDFileName         = "fass_backup_daemon.pid"
	DaemonLogFileName   = "fass_backup_daemon.log"
	DaemonErrFileName   = "fass_backup_daemon.err"
)

// Config represents the main configuration for fass.
type Config struct {
	BaseDir      string           `toml:"base_dir"`
	LogDir       string           `toml:"log_dir"`
	BackupRoot   string           `toml:"backup_root"`
	SettingsPath string           `toml:"settings_path"`
	Index        IndexConfig      `toml:"index"`
	Daemon       DaemonConfig     `toml:"daemon"`
	Filesystem   FilesystemConfig `toml:"filesystem"`
}

// IndexConfig represents configuration for the metadata index.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type IndexConfig struct {
	Type        string        `toml:"type"`           // "json" (default), "sqlite" or "memory"
	Path        string        `toml:"path,omitempty"` // unused for type=memory
	LockTimeout time.Duration `toml:"lock_timeout"`
}

// DaemonConfig holds the locations the background daemon uses.
type DaemonConfig struct {
	WorkDir string `toml:"work_dir"`
	PIDFile string `toml:"pid_file"`
	LogFile string `toml:"log_file"`
	ErrFile string `toml:"err_file"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// DefaultLockTimeout bounds waits for the index write lock.
const DefaultLockTimeout = 30 * time.Second

// NewConfig creates a new Config rooted at baseDir that backs up into backupRoot.
func NewConfig(baseDir, backupRoot string) *Config {
	cfg := &Config{BaseDir: baseDir, BackupRoot: backupRoot}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset path from BaseDir.
func (c *Config) ApplyDefaults() {
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.BaseDir, "log")
	}
	if c.SettingsPath == "" {
		c.SettingsPath = filepath.Join(c.BaseDir, SettingsFileName)
	}
	if c.Index.Type == "" {
		c.Index.Type = "json"
	}
	if c.Index.Path == "" {
		switch c.Index.Type {
		case "sqlite":
			c.Index.Path = filepath.Join(c.BaseDir, SQLiteIndexFileName)
		case "json":
			c.Index.Path = filepath.Join(c.BaseDir, IndexFileName)
		}
	}
	if c.Index.LockTimeout <= 0 {
		c.Index.LockTimeout = DefaultLockTimeout
	}
	if c.Daemon.WorkDir == "" {
		c.Daemon.WorkDir = c.BaseDir
	}
	if c.Daemon.PIDFile == "" {
		c.Daemon.PIDFile = filepath.Join(c.Daemon.WorkDir, PIDFileName)
	}
	if c.Daemon.LogFile == "" {
		c.Daemon.LogFile = filepath.Join(c.Daemon.WorkDir, DaemonLogFileName)
	}
	if c.Daemon.ErrFile == "" {
		c.Daemon.ErrFile = filepath.Join(c.Daemon.WorkDir, DaemonErrFileName)
	}
}

// Validate checks the fields that have no sensible default.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir is required")
	}
	if c.BackupRoot == "" {
		return fmt.Errorf("backup_root is required")
	}
	if !filepath.IsAbs(c.BackupRoot) {
		return fmt.Errorf("backup_root must be absolute: %s", c.BackupRoot)
	}
	switch c.Index.Type {
	case "json", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown index type: %s", c.Index.Type)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path and fills defaults.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
