// Package config provides XDG path helpers.
package config

import (
	"os"
	"path/filepath"
)

const appName = "dungeonlog"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultRunsPath returns the default run history path for a storage backend.
func DefaultRunsPath(backend string) string {
	if backend == "sqlite" {
		return filepath.Join(XDGDataHome(), appName, "runs.db")
	}
	return filepath.Join(XDGDataHome(), appName, "runs.json")
}

// DefaultGameDataPath returns the default event object overrides file.
func DefaultGameDataPath() string {
	return filepath.Join(XDGConfigHome(), appName, "gamedata.toml")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appName, "config.toml")
}
