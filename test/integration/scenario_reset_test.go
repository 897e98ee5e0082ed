package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phalsystem/internal/bus"
	"phalsystem/internal/plugins/reset"
	"phalsystem/pkg/testutil"
)

// fakeParticipant simulates a hardware subsystem on its own bus connection.
// It registers itself, then acknowledges reset broadcasts after ackDelay.
type fakeParticipant struct {
	skillID  string
	client   *bus.Client
	ackDelay time.Duration
	silent   bool
}

func startParticipant(t *testing.T, env *testutil.TestEnv, skillID string, ackDelay time.Duration, silent bool) *fakeParticipant {
	t.Helper()

	client := bus.NewClient(env.Server.URL(), env.Logger)
	require.NoError(t, client.Connect())

	p := &fakeParticipant{
		skillID:  skillID,
		client:   client,
		ackDelay: ackDelay,
		silent:   silent,
	}

	_, err := client.On(reset.TopicBroadcast, func(msg *bus.Message) {
		if p.silent {
			return
		}
		time.Sleep(p.ackDelay)
		p.client.Emit(bus.NewMessage(reset.TopicAckComplete, map[string]interface{}{
			"skill_id": p.skillID,
		}))
	})
	require.NoError(t, err)

	require.NoError(t, client.Emit(bus.NewMessage(reset.TopicRegister, map[string]interface{}{
		"skill_id": skillID,
	})))

	return p
}

func (p *fakeParticipant) stop() {
	p.client.Disconnect()
}

func setupResetTest(t *testing.T, addr string) (*testutil.TestEnv, *reset.Coordinator) {
	t.Helper()

	env, err := testutil.NewTestEnv(addr, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(env.Cleanup)

	coordinator := reset.NewCoordinator(env.Client, env.Services, env.Runner,
		env.Config, env.Locations, env.Logger)
	require.NoError(t, coordinator.Start())
	t.Cleanup(coordinator.Stop)

	return env, coordinator
}

func waitForParticipants(t *testing.T, c *reset.Coordinator, count int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(c.Participants()) == count
	}, 2*time.Second, 20*time.Millisecond, "participants never registered")
}

func waitForRun(t *testing.T, c *reset.Coordinator, timeout time.Duration) *reset.RunSummary {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.LastRun() != nil
	}, timeout, 20*time.Millisecond, "reset run never completed")
	return c.LastRun()
}

// TestScenario_FactoryResetFanOutFanIn drives a complete reset over a live
// WebSocket connection: two participants register on their own connections,
// both acknowledge the broadcast, and the run ends with a reboot request.
func TestScenario_FactoryResetFanOutFanIn(t *testing.T) {
	env, coordinator := setupResetTest(t, "localhost:18181")

	t.Log("GIVEN: Two hardware subsystems registered over the bus")
	a := startParticipant(t, env, "subsystem-a", 50*time.Millisecond, false)
	defer a.stop()
	b := startParticipant(t, env, "subsystem-b", 100*time.Millisecond, false)
	defer b.stop()
	waitForParticipants(t, coordinator, 2)

	t.Log("WHEN: A factory reset is requested")
	env.Server.ClearMessages()
	require.NoError(t, env.Client.Emit(bus.NewMessage(reset.TopicReset, map[string]interface{}{
		"reboot": true,
	})))

	t.Log("THEN: Both acknowledgments arrive and the sequence proceeds to reboot")
	summary := waitForRun(t, coordinator, 3*time.Second)

	assert.False(t, summary.TimedOut, "all participants acknowledged in time")
	assert.ElementsMatch(t, []string{"subsystem-a", "subsystem-b"}, summary.Participants)
	assert.ElementsMatch(t, []string{"subsystem-a", "subsystem-b"}, summary.Acknowledged)
	assert.True(t, summary.Rebooted)

	assert.NotNil(t, env.Server.FindMessage(reset.TopicStart), "start announcement on the bus")
	assert.NotNil(t, env.Server.FindMessage(reset.TopicBroadcast), "broadcast on the bus")
	assert.NotNil(t, env.Server.FindMessage(reset.TopicReboot), "reboot request on the bus")
}

// TestScenario_PartialAckTimeout verifies that one silent participant does
// not wedge the sequence: the wait ends at the deadline and the run records
// which acknowledgments were missing.
func TestScenario_PartialAckTimeout(t *testing.T) {
	env, coordinator := setupResetTest(t, "localhost:18182")
	coordinator.SetAckTimeout(500 * time.Millisecond)

	t.Log("GIVEN: One responsive and one silent participant")
	a := startParticipant(t, env, "responsive", 50*time.Millisecond, false)
	defer a.stop()
	b := startParticipant(t, env, "silent", 0, true)
	defer b.stop()
	waitForParticipants(t, coordinator, 2)

	t.Log("WHEN: A factory reset is requested")
	started := time.Now()
	require.NoError(t, env.Client.Emit(bus.NewMessage(reset.TopicReset, map[string]interface{}{
		"reboot": false,
	})))

	t.Log("THEN: The run finishes at the deadline with a partial acknowledgment set")
	summary := waitForRun(t, coordinator, 3*time.Second)

	assert.True(t, summary.TimedOut)
	assert.GreaterOrEqual(t, time.Since(started), 500*time.Millisecond)
	assert.Equal(t, []string{"responsive"}, summary.Acknowledged)
	assert.False(t, summary.Rebooted)
}

// TestScenario_ResetWithoutParticipants verifies the degenerate case: with
// nobody registered the sequence runs straight through without broadcasting.
func TestScenario_ResetWithoutParticipants(t *testing.T) {
	env, coordinator := setupResetTest(t, "localhost:18183")

	env.Server.ClearMessages()

	started := time.Now()
	require.NoError(t, env.Client.Emit(bus.NewMessage(reset.TopicReset, map[string]interface{}{
		"reboot": false,
	})))

	summary := waitForRun(t, coordinator, 2*time.Second)

	assert.Less(t, time.Since(started), time.Second, "no acknowledgment wait")
	assert.False(t, summary.TimedOut)
	assert.Empty(t, summary.Participants)

	// Give any stray broadcast time to surface before asserting absence
	time.Sleep(100 * time.Millisecond)
	assert.Nil(t, env.Server.FindMessage(reset.TopicBroadcast))
}
