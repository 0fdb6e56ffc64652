package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ConfigFileName is the TOML config file under the muxgram directory.
	ConfigFileName = "config.toml"

	// StoreFileName is the window→session binding map shared with hook
	// invocations.
	StoreFileName = "session_map.json"

	// HistoryFileName receives one JSON line per superseded binding.
	HistoryFileName = "bindings_history.jsonl"

	// LedgerFileName is the SQLite relay ledger.
	LedgerFileName = "relay.db"
)

// BaseDir returns the muxgram data directory: $MUXGRAM_DIR when set,
// otherwise ~/.muxgram.
func BaseDir() (string, error) {
	if dir := os.Getenv("MUXGRAM_DIR"); dir != "" {
		return ExpandTilde(dir), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".muxgram"), nil
}

// EnsureBaseDir creates the data directory if needed and returns it.
func EnsureBaseDir() (string, error) {
	dir, err := BaseDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}

// ConfigPath returns the path to config.toml.
func ConfigPath() (string, error) {
	dir, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// StorePath returns the path to the session map file.
func StorePath() (string, error) {
	dir, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, StoreFileName), nil
}

// HistoryPath returns the path to the bindings history log.
func HistoryPath() (string, error) {
	dir, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, HistoryFileName), nil
}

// LedgerPath returns the path to the relay ledger database.
func LedgerPath() (string, error) {
	dir, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, LedgerFileName), nil
}

// LogDir returns the directory for rotated log files.
func LogDir() (string, error) {
	dir, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// ExpandTilde expands a leading ~/ to the user's home directory. Paths
// that resolve outside home after cleaning are returned unexpanded.
func ExpandTilde(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	cleaned := filepath.Clean(filepath.Join(home, path[2:]))
	if !strings.HasPrefix(cleaned, home) {
		return path
	}
	return cleaned
}
