package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that override the default locations.
const (
	EnvConfigPath = "FASS_CONFIG_PATH"
	EnvHome       = "FASS_HOME"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - FASS_CONFIG_PATH: config file location (default: ~/.config/fass.toml)
//   - FASS_HOME: base directory for fass data (default: ~/.local/share/fass)
//
// The backup root defaults to ~/Backup.
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"backup_root": filepath.Join(homeDir, "Backup"),
	}, nil
}

// getConfigPath returns the config file path, checking FASS_CONFIG_PATH env var first,
// then falling back to the default ~/.config/fass.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "fass.toml"), nil
}

// getBaseDir returns the base directory for fass data, checking FASS_HOME env var first,
// then falling back to the XDG default ~/.local/share/fass.
func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "fass"), nil
}
