package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - CONFIG_PATH: config file location (default: ~/.config/fileshare.toml)
//   - FILESHARE_HOME: base directory for fileshare data (default: ~/.local/share/fileshare)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	keyDir := filepath.Join(baseDir, "keys")
	return map[string]string{
		"config_path":      configPath,
		"base_dir":         baseDir,
		"public_key_path":  filepath.Join(keyDir, "public.age"),
		"private_key_path": filepath.Join(keyDir, "private.age"),
	}, nil
}

// ResolveConfigPath returns the config file to load. An explicit path wins;
// otherwise the default location is used only if a file exists there.
// An empty result means "defaults and environment only".
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path, nil
	}

	path, err := getConfigPath()
	if err != nil {
		return "", nil // no home directory: nothing to look for
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("checking config file: %w", err)
	}
	return path, nil
}

// getConfigPath returns the config file path, checking CONFIG_PATH env var first,
// then falling back to the default ~/.config/fileshare.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "fileshare.toml"), nil
}

// getBaseDir returns the base directory for fileshare data, checking
// FILESHARE_HOME env var first, then falling back to ~/.local/share/fileshare.
func getBaseDir() (string, error) {
	if path := os.Getenv("FILESHARE_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "fileshare"), nil
}
