package config

import (
	"os"
	"path/filepath"
)

// baseFolder is the XDG subdirectory owned by the assistant stack.
const baseFolder = "mycroft"

// Locations holds every filesystem path the plugin touches: the identity
// credentials, the XDG cache/data/state trees, the auxiliary store files
// kept by the offline backend, and the configuration files.
type Locations struct {
	IdentityFile    string
	OldIdentityFile string

	CacheDir string
	DataDir  string
	StateDir string

	// AuxStores are the named store files wiped together with user data.
	AuxStores []string

	UserConfig     string
	LegacyConfig   string
	WebConfigCache string

	// BashProfile is overwritten with the LANG export on language change.
	BashProfile string
}

// auxStorageNames are the key/value stores kept by the offline backend.
var auxStorageNames = []string{
	"ovos_device_info",
	"ovos_oauth",
	"ovos_oauth_apps",
	"ovos_devices",
	"ovos_metrics",
	"ovos_preferences",
	"ovos_skills_meta",
}

// auxDatabaseNames are the list-shaped databases kept alongside them.
var auxDatabaseNames = []string{
	"ovos_metrics",
	"ovos_utterances",
	"ovos_wakewords",
}

// DefaultLocations resolves all paths from the environment using the usual
// XDG fallbacks.
func DefaultLocations() *Locations {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/root"
	}

	cacheHome := envOr("XDG_CACHE_HOME", filepath.Join(home, ".cache"))
	dataHome := envOr("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	stateHome := envOr("XDG_STATE_HOME", filepath.Join(home, ".local", "state"))
	configHome := envOr("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	loc := &Locations{
		IdentityFile:    filepath.Join(configHome, baseFolder, "identity", "identity2.json"),
		OldIdentityFile: filepath.Join(home, ".mycroft", "identity", "identity2.json"),
		CacheDir:        filepath.Join(cacheHome, baseFolder),
		DataDir:         filepath.Join(dataHome, baseFolder),
		StateDir:        filepath.Join(stateHome, baseFolder),
		UserConfig:      filepath.Join(configHome, baseFolder, "mycroft.conf"),
		LegacyConfig:    filepath.Join(home, ".mycroft", "mycroft.conf"),
		WebConfigCache:  filepath.Join(configHome, baseFolder, "web_cache.json"),
		BashProfile:     filepath.Join(home, ".bash_profile"),
	}

	storeDir := filepath.Join(dataHome, "json_database")
	for _, name := range auxStorageNames {
		loc.AuxStores = append(loc.AuxStores, filepath.Join(storeDir, name+".json"))
	}
	for _, name := range auxDatabaseNames {
		loc.AuxStores = append(loc.AuxStores, filepath.Join(storeDir, name+".jsondb"))
	}

	return loc
}

// TestLocations resolves every path under the given root directory. Useful
// for exercising the wipe logic against a scratch tree.
func TestLocations(root string) *Locations {
	loc := &Locations{
		IdentityFile:    filepath.Join(root, "config", baseFolder, "identity", "identity2.json"),
		OldIdentityFile: filepath.Join(root, ".mycroft", "identity", "identity2.json"),
		CacheDir:        filepath.Join(root, "cache", baseFolder),
		DataDir:         filepath.Join(root, "data", baseFolder),
		StateDir:        filepath.Join(root, "state", baseFolder),
		UserConfig:      filepath.Join(root, "config", baseFolder, "mycroft.conf"),
		LegacyConfig:    filepath.Join(root, ".mycroft", "mycroft.conf"),
		WebConfigCache:  filepath.Join(root, "config", baseFolder, "web_cache.json"),
		BashProfile:     filepath.Join(root, ".bash_profile"),
	}

	storeDir := filepath.Join(root, "data", "json_database")
	for _, name := range auxStorageNames {
		loc.AuxStores = append(loc.AuxStores, filepath.Join(storeDir, name+".json"))
	}
	for _, name := range auxDatabaseNames {
		loc.AuxStores = append(loc.AuxStores, filepath.Join(storeDir, name+".jsondb"))
	}

	return loc
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
