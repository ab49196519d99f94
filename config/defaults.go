package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultHTTPPort returns the default HTTP port for the attribution
// service.
func DefaultHTTPPort() int {
	return 8741
}

// DefaultConfigPath returns the default path for the salience config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "salience", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "salience")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "salience")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "salience")
		}
		return filepath.Join(home, ".config", "salience")
	}
}

// DefaultModelsPath returns the default path for the salience models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "salience", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "salience", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "salience", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "salience", "models")
		}
		return filepath.Join(home, ".cache", "salience", "models")
	}
}
