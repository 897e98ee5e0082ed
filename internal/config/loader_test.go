package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoader_DefaultsWhenFileMissing(t *testing.T) {
	loader := NewLoader(t.TempDir(), zap.NewNop())

	require.NoError(t, loader.LoadAll())

	cfg := loader.GetSystemConfig()
	assert.Equal(t, "sshd.service", cfg.SSHService)
	assert.Equal(t, "ovos.service", cfg.CoreService)
	assert.Equal(t, "ovos-shell", cfg.ShellProcess)
	assert.True(t, cfg.UseSudo())
	assert.Nil(t, cfg.UseExternalFactoryReset)
}

func TestLoader_LoadSystemConfig(t *testing.T) {
	dir := t.TempDir()
	content := `
ssh_service: ssh.service
core_service: neon.service
sudo: false
reset_script: /opt/reset.sh
use_external_factory_reset: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "system.yaml"), []byte(content), 0o644))

	loader := NewLoader(dir, zap.NewNop())
	require.NoError(t, loader.LoadAll())

	cfg := loader.GetSystemConfig()
	assert.Equal(t, "ssh.service", cfg.SSHService)
	assert.Equal(t, "neon.service", cfg.CoreService)
	assert.False(t, cfg.UseSudo())
	assert.Equal(t, "/opt/reset.sh", cfg.ResetScript)
	require.NotNil(t, cfg.UseExternalFactoryReset)
	assert.True(t, *cfg.UseExternalFactoryReset)
	// Unset fields still default
	assert.Equal(t, "ovos-shell", cfg.ShellProcess)
}

func TestLoader_RejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "system.yaml"), []byte("ssh_service: [broken"), 0o644))

	loader := NewLoader(dir, zap.NewNop())
	assert.Error(t, loader.LoadAll())
}

func TestUpdateUserConfig_MergesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mycroft.conf")
	require.NoError(t, os.WriteFile(path, []byte(`{"lang": "en-us", "tts": {"module": "piper"}}`), 0o644))

	require.NoError(t, UpdateUserConfig(path, map[string]interface{}{"lang": "pt-pt"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Equal(t, "pt-pt", cfg["lang"])
	assert.Contains(t, cfg, "tts", "unrelated keys survive the merge")
}

func TestUpdateUserConfig_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mycroft.conf")

	require.NoError(t, UpdateUserConfig(path, map[string]interface{}{"lang": "de-de"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Equal(t, "de-de", cfg["lang"])
}

func TestLocations_AuxStores(t *testing.T) {
	loc := TestLocations(t.TempDir())

	assert.Len(t, loc.AuxStores, 10)
	for _, p := range loc.AuxStores {
		assert.Contains(t, p, "json_database")
	}
	assert.NotEmpty(t, loc.IdentityFile)
	assert.NotEmpty(t, loc.WebConfigCache)
}
