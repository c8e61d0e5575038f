// Package config resolves on-disk locations and user settings for agent-bridge.
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// EnvDir overrides the configuration directory when set.
const EnvDir = "AGENT_BRIDGE_DIR"

const appName = "agent-bridge"

// GetConfigDir resolves the base directory holding the registry, the cache
// and the sync journal. AGENT_BRIDGE_DIR wins, then XDG_CONFIG_HOME, and
// finally ~/.config.
func GetConfigDir() string {
	if explicit := os.Getenv(EnvDir); explicit != "" {
		return explicit
	}

	xdg.Reload()

	configHome := xdg.ConfigHome
	if configHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), appName)
			}
		}
		configHome = filepath.Join(home, ".config")
	}

	return filepath.Join(configHome, appName)
}

// GetRegistryPath returns the path of the vault registry file.
func GetRegistryPath() string {
	return filepath.Join(GetConfigDir(), "vaults.json")
}

// GetCacheDir returns the directory holding one working copy per remote vault.
func GetCacheDir() string {
	return filepath.Join(GetConfigDir(), "cache")
}

// GetJournalPath returns the path to the SQLite sync journal.
func GetJournalPath() string {
	return filepath.Join(GetConfigDir(), "journal.db")
}

// GetSettingsPath returns the default settings file location.
func GetSettingsPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}
