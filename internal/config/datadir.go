package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns MEDIACRAWL_DATA_DIR when set, otherwise the per-user data
// directory for the current OS. The directory is created if missing.
func DataDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "DATA_DIR"); dir != "" {
		return ensureDir(dir)
	}
	dir, err := osDataDir(runtime.GOOS)
	if err != nil {
		return "", err
	}
	return ensureDir(dir)
}

func osDataDir(goos string) (string, error) {
	switch goos {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", AppName), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, AppName), nil
	default:
		// Use XDG_DATA_HOME if set, otherwise ~/.local/share
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", AppName), nil
	}
}

func ensureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return abs, nil
}
