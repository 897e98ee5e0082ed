package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SystemConfig represents the system.yaml structure
type SystemConfig struct {
	// SSHService is the unit toggled by the ssh enable/disable handlers.
	// In Debian, ssh stays active, but sshd is removed when ssh is disabled.
	SSHService string `yaml:"ssh_service"`

	// CoreService is the primary assistant service unit.
	CoreService string `yaml:"core_service"`

	// Sudo controls whether privileged retries are attempted.
	Sudo *bool `yaml:"sudo"`

	// Scripts run in place of the default commands when present on disk.
	RebootScript   string `yaml:"reboot_script"`
	ShutdownScript string `yaml:"shutdown_script"`
	ResetScript    string `yaml:"reset_script"`

	// UseExternalFactoryReset forces the reset script to be delegated to
	// the shell UI process (true) or run internally (false). When unset,
	// delegation is auto-detected from the shell process being alive.
	UseExternalFactoryReset *bool `yaml:"use_external_factory_reset"`

	// ShellProcess is the process name checked for auto-detection.
	ShellProcess string `yaml:"shell_process"`
}

// UseSudo returns the sudo policy, defaulting to true.
func (c *SystemConfig) UseSudo() bool {
	if c.Sudo == nil {
		return true
	}
	return *c.Sudo
}

// Loader manages configuration file loading
type Loader struct {
	configDir    string
	logger       *zap.Logger
	systemConfig *SystemConfig
	locations    *Locations
}

// NewLoader creates a new configuration loader
func NewLoader(configDir string, logger *zap.Logger) *Loader {
	return &Loader{
		configDir: configDir,
		logger:    logger,
		locations: DefaultLocations(),
	}
}

// LoadAll loads all configuration files
func (l *Loader) LoadAll() error {
	l.logger.Info("Loading configuration files", zap.String("dir", l.configDir))

	if err := l.LoadSystemConfig(); err != nil {
		return fmt.Errorf("failed to load system config: %w", err)
	}

	l.logger.Info("All configuration files loaded successfully")
	return nil
}

// LoadSystemConfig loads the system.yaml file. A missing file is not an
// error; the defaults apply.
func (l *Loader) LoadSystemConfig() error {
	path := filepath.Join(l.configDir, "system.yaml")
	l.logger.Debug("Loading system config", zap.String("path", path))

	config := &SystemConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Info("No system config file, using defaults", zap.String("path", path))
			l.systemConfig = applyDefaults(config)
			return nil
		}
		return fmt.Errorf("failed to read system config: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse system config: %w", err)
	}

	l.systemConfig = applyDefaults(config)
	l.logger.Info("System config loaded successfully",
		zap.String("ssh_service", l.systemConfig.SSHService),
		zap.String("core_service", l.systemConfig.CoreService))
	return nil
}

// applyDefaults fills unset fields with the defaults
func applyDefaults(c *SystemConfig) *SystemConfig {
	if c.SSHService == "" {
		c.SSHService = "sshd.service"
	}
	if c.CoreService == "" {
		c.CoreService = "ovos.service"
	}
	if c.ShellProcess == "" {
		c.ShellProcess = "ovos-shell"
	}
	return c
}

// GetSystemConfig returns the loaded system configuration
func (l *Loader) GetSystemConfig() *SystemConfig {
	if l.systemConfig == nil {
		return applyDefaults(&SystemConfig{})
	}
	return l.systemConfig
}

// GetLocations returns the resolved filesystem locations
func (l *Loader) GetLocations() *Locations {
	return l.locations
}

// SetLocations overrides the resolved locations (useful for testing)
func (l *Loader) SetLocations(loc *Locations) {
	l.locations = loc
}

// UpdateUserConfig merges the given values into the user configuration
// file, creating it when absent. The user config is JSON, matching what the
// rest of the assistant stack reads.
func UpdateUserConfig(path string, values map[string]interface{}) error {
	existing := make(map[string]interface{})

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("failed to parse user config: %w", err)
		}
	}

	for k, v := range values {
		existing[k] = v
	}

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode user config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}

	return nil
}
