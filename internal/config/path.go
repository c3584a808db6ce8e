package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir picks a per-user data directory: $XDG_DATA_HOME/myiot,
// ~/Library/Application Support/myiot on macOS and ~/.myiot elsewhere.
// Without a home directory it falls back to ./data.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "myiot")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	if lib := filepath.Join(home, "Library", "Application Support"); isDir(lib) {
		return filepath.Join(lib, "myiot")
	}
	return filepath.Join(home, ".myiot")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
