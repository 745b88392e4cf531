package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir:      "/home/user/.local/share/fass",
		LogDir:       "/home/user/.local/share/fass/log",
		BackupRoot:   "/home/user/Backup",
		SettingsPath: "/home/user/.local/share/fass/settings.toml",
		Index: IndexConfig{
			Type:        "sqlite",
			Path:        "/home/user/.local/share/fass/fass.db",
			LockTimeout: 5 * time.Second,
		},
		Daemon: DaemonConfig{
			WorkDir: "/home/user/.local/share/fass",
			PIDFile: "/run/user/1000/fass.pid",
		},
		Filesystem: FilesystemConfig{
			Ignore: []string{"*.log", ".git"},
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.BackupRoot != original.BackupRoot {
		t.Errorf("BackupRoot = %q, want %q", got.BackupRoot, original.BackupRoot)
	}
	if got.Index.Type != "sqlite" {
		t.Errorf("Index.Type = %q, want %q", got.Index.Type, "sqlite")
	}
	if got.Index.LockTimeout != 5*time.Second {
		t.Errorf("Index.LockTimeout = %v, want %v", got.Index.LockTimeout, 5*time.Second)
	}
	if got.Daemon.PIDFile != original.Daemon.PIDFile {
		t.Errorf("Daemon.PIDFile = %q, want %q", got.Daemon.PIDFile, original.Daemon.PIDFile)
	}
	if len(got.Filesystem.Ignore) != 2 {
		t.Fatalf("len(Filesystem.Ignore) = %d, want 2", len(got.Filesystem.Ignore))
	}
}

func TestManager_Read_LockTimeoutString(t *testing.T) {
	m := &Manager{}
	got, err := m.Read(strings.NewReader("base_dir = \"/b\"\n[index]\nlock_timeout = \"1m30s\"\n"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Index.LockTimeout != 90*time.Second {
		t.Errorf("Index.LockTimeout = %v, want 1m30s", got.Index.LockTimeout)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/fass", "/home/u/Backup")

	checks := map[string][2]string{
		"LogDir":         {cfg.LogDir, "/data/fass/log"},
		"SettingsPath":   {cfg.SettingsPath, "/data/fass/settings.toml"},
		"Index.Type":     {cfg.Index.Type, "json"},
		"Index.Path":     {cfg.Index.Path, "/data/fass/backup_metadata.json"},
		"Daemon.WorkDir": {cfg.Daemon.WorkDir, "/data/fass"},
		"Daemon.PIDFile": {cfg.Daemon.PIDFile, "/data/fass/fass_backup_daemon.pid"},
		"Daemon.LogFile": {cfg.Daemon.LogFile, "/data/fass/fass_backup_daemon.log"},
		"Daemon.ErrFile": {cfg.Daemon.ErrFile, "/data/fass/fass_backup_daemon.err"},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s = %q, want %q", name, c[0], c[1])
		}
	}
	if cfg.Index.LockTimeout != DefaultLockTimeout {
		t.Errorf("Index.LockTimeout = %v, want %v", cfg.Index.LockTimeout, DefaultLockTimeout)
	}
}

func TestApplyDefaults_SQLitePath(t *testing.T) {
	cfg := &Config{BaseDir: "/data/fass", Index: IndexConfig{Type: "sqlite"}}
	cfg.ApplyDefaults()
	if cfg.Index.Path != "/data/fass/fass.db" {
		t.Errorf("Index.Path = %q, want /data/fass/fass.db", cfg.Index.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing backup root", mutate: func(c *Config) { c.BackupRoot = "" }, wantErr: true},
		{name: "relative backup root", mutate: func(c *Config) { c.BackupRoot = "Backup" }, wantErr: true},
		{name: "unknown index type", mutate: func(c *Config) { c.Index.Type = "redis" }, wantErr: true},
		{name: "missing base dir", mutate: func(c *Config) { c.BaseDir = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/data/fass", "/home/u/Backup")
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "fass.toml")

		if err := Init(path, NewConfig(dir, filepath.Join(dir, "Backup"))); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "fass.toml")
		cfg := NewConfig(dir, filepath.Join(dir, "Backup"))

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config and fills defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "fass.toml")
		content := "base_dir = \"" + dir + "\"\nbackup_root = \"/srv/backup\"\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("writing config: %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.BackupRoot != "/srv/backup" {
			t.Errorf("BackupRoot = %q, want /srv/backup", got.BackupRoot)
		}
		if got.Index.Path != filepath.Join(dir, IndexFileName) {
			t.Errorf("Index.Path = %q, want default", got.Index.Path)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/fass.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
