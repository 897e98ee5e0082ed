package integration

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phalsystem/internal/bus"
	"phalsystem/internal/plugins/actions"
	"phalsystem/pkg/testutil"
)

func setupActionsTest(t *testing.T, addr string) (*testutil.TestEnv, *actions.Manager) {
	t.Helper()

	env, err := testutil.NewTestEnv(addr, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(env.Cleanup)

	manager := actions.NewManager(env.Client, env.Services, env.Runner,
		env.Config, env.Locations, env.Logger)
	require.NoError(t, manager.Start())
	t.Cleanup(manager.Stop)

	return env, manager
}

// TestScenario_SSHStatusRoundTrip queries the SSH state over a live bus
// connection and verifies the conventional .response reply comes back.
func TestScenario_SSHStatusRoundTrip(t *testing.T) {
	env, _ := setupActionsTest(t, "localhost:18184")

	t.Log("WHEN: Another bus client asks for the SSH status")
	require.NoError(t, env.Server.Emit(bus.NewMessage(actions.TopicSSHStatus, nil)))

	t.Log("THEN: The status response is published on the bus")
	response := env.Server.WaitForMessage(actions.TopicSSHStatus+".response", 2*time.Second)
	require.NotNil(t, response, "no status response on the bus")
	assert.True(t, response.Bool("enabled", false), "mocked service manager reports active")

	assert.True(t, env.Runner.FindCommand("systemctl is-active --quiet sshd.service"))
}

// TestScenario_SSHEnableCommandSequence verifies the enable request turns
// into the systemctl enable+start pair.
func TestScenario_SSHEnableCommandSequence(t *testing.T) {
	env, _ := setupActionsTest(t, "localhost:18185")

	require.NoError(t, env.Server.Emit(bus.NewMessage(actions.TopicSSHEnable, map[string]interface{}{
		"display": false,
	})))

	require.Eventually(t, func() bool {
		return env.Runner.FindCommand("systemctl start sshd.service")
	}, 2*time.Second, 20*time.Millisecond)
	assert.True(t, env.Runner.FindCommand("systemctl enable sshd.service"))
}

// TestScenario_LanguageChange drives a locale switch end to end: the shell
// profile gets the raw code, the user config the normalized one, and the
// completion event announces it.
func TestScenario_LanguageChange(t *testing.T) {
	env, _ := setupActionsTest(t, "localhost:18186")

	t.Log("WHEN: A language change to pt_PT is requested")
	require.NoError(t, env.Server.Emit(bus.NewMessage(actions.TopicLanguage, map[string]interface{}{
		"language_code": "pt_PT",
	})))

	t.Log("THEN: The completion event carries the normalized code")
	complete := env.Server.WaitForMessage(actions.TopicLanguageComplete, 2*time.Second)
	require.NotNil(t, complete, "no language completion on the bus")
	assert.Equal(t, "pt-pt", complete.String("lang", ""))

	profile, err := os.ReadFile(env.Locations.BashProfile)
	require.NoError(t, err)
	assert.Equal(t, "export LANG=pt_PT\n", string(profile))

	raw, err := os.ReadFile(env.Locations.UserConfig)
	require.NoError(t, err)
	var userConfig map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &userConfig))
	assert.Equal(t, "pt-pt", userConfig["lang"])
}

// TestScenario_ServiceRestartFallsBackToSudo verifies the user-scope
// restart is tried first and the sudo retry kicks in when it fails.
func TestScenario_ServiceRestartFallsBackToSudo(t *testing.T) {
	env, _ := setupActionsTest(t, "localhost:18187")

	env.Runner.SetError("systemctl --user restart ovos.service", os.ErrPermission)

	require.NoError(t, env.Server.Emit(bus.NewMessage(actions.TopicServiceRestart, map[string]interface{}{
		"display": false,
	})))

	require.Eventually(t, func() bool {
		return env.Runner.FindCommand("sudo systemctl restart ovos.service")
	}, 2*time.Second, 20*time.Millisecond)
	assert.True(t, env.Runner.FindCommand("systemctl --user restart ovos.service"),
		"user scope attempted first")
}
