package reset

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"phalsystem/internal/bus"
	"phalsystem/internal/config"
	"phalsystem/internal/system"

	"go.uber.org/zap"
)

// Bus topics owned by the factory reset protocol
const (
	TopicReset       = "system.factory.reset"
	TopicRegister    = "system.factory.reset.register"
	TopicPing        = "system.factory.reset.ping"
	TopicStart       = "system.factory.reset.start"
	TopicBroadcast   = "system.factory.reset.phal"
	TopicAckComplete = "system.factory.reset.phal.complete"
	TopicComplete    = "system.factory.reset.complete"
	TopicShellExec   = "ovos.shell.exec.factory.reset"
	TopicReboot      = "system.reboot"
)

// DefaultAckTimeout bounds the wait for participant acknowledgments.
const DefaultAckTimeout = 60 * time.Second

// legacyResetKeys mark a malformed registration as a deprecated reset
// request coming from an old GUI.
var legacyResetKeys = []string{
	"reset_hardware", "wipe_cache", "wipe_config", "wipe_data", "wipe_logs",
}

// RunSummary captures the outcome of one orchestration run.
type RunSummary struct {
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Participants []string  `json:"participants"`
	Acknowledged []string  `json:"acknowledged"`
	TimedOut     bool      `json:"timed_out"`
	ScriptRan    bool      `json:"script_ran"`
	Rebooted     bool      `json:"rebooted"`
}

// Coordinator orchestrates the factory reset sequence: wipe the on-disk
// stores, broadcast the hardware reset to every registered participant,
// wait for all acknowledgments (bounded), run the configured script and
// finally request a reboot.
//
// The participant set and the per-run acknowledgment set are shared
// between the bus delivery path and the waiting reset flow; both are
// guarded by one mutex. The wait itself parks only the reset flow on a
// per-run channel, so acknowledgment messages keep flowing.
type Coordinator struct {
	busClient bus.MessageBus
	services  *system.Services
	runner    system.Runner
	config    *config.SystemConfig
	locations *config.Locations
	logger    *zap.Logger

	mu           sync.Mutex
	participants map[string]struct{}
	acks         map[string]struct{}
	done         chan struct{}
	waiting      bool
	lastRun      *RunSummary

	ackTimeout time.Duration
	subs       []bus.Subscription
}

// NewCoordinator creates a new factory reset coordinator
func NewCoordinator(busClient bus.MessageBus, services *system.Services, runner system.Runner,
	cfg *config.SystemConfig, locations *config.Locations, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		busClient:    busClient,
		services:     services,
		runner:       runner,
		config:       cfg,
		locations:    locations,
		logger:       logger.Named("reset"),
		participants: make(map[string]struct{}),
		ackTimeout:   DefaultAckTimeout,
	}
}

// Name returns the plugin identifier
func (c *Coordinator) Name() string {
	return "factory-reset"
}

// SetAckTimeout overrides the acknowledgment deadline (useful for testing)
func (c *Coordinator) SetAckTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ackTimeout = d
}

// Start subscribes the coordinator and pings subsystems for registration
func (c *Coordinator) Start() error {
	c.logger.Info("Starting Factory Reset Coordinator")

	for topic, handler := range map[string]bus.Handler{
		TopicReset:       c.handleResetRequest,
		TopicRegister:    c.handleRegister,
		TopicAckComplete: c.handleAck,
	} {
		sub, err := c.busClient.On(topic, handler)
		if err != nil {
			return err
		}
		c.subs = append(c.subs, sub)
	}

	// Trigger register events from hardware subsystems
	if err := c.busClient.Emit(bus.NewMessage(TopicPing, nil)); err != nil {
		c.logger.Warn("Failed to emit discovery ping", zap.Error(err))
	}

	c.logger.Info("Factory Reset Coordinator started successfully")
	return nil
}

// Stop removes all bus subscriptions
func (c *Coordinator) Stop() {
	for _, sub := range c.subs {
		sub.Unsubscribe()
	}
	c.subs = nil
	c.logger.Info("Factory Reset Coordinator stopped")
}

// Register adds a participant that must acknowledge hardware resets.
// Registering the same identifier twice is a no-op.
func (c *Coordinator) Register(skillID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.participants[skillID]; ok {
		return
	}
	c.participants[skillID] = struct{}{}
	c.logger.Info("Registered reset participant", zap.String("skill_id", skillID))
}

// Participants returns the currently registered participant identifiers
func (c *Coordinator) Participants() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.participants)
}

// LastRun returns the summary of the most recent orchestration run
func (c *Coordinator) LastRun() *RunSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun
}

// handleRegister processes a registration event. A payload without a
// skill_id is either noise or, when it carries the old wipe flags, a
// deprecated full-reset trigger from a legacy GUI.
func (c *Coordinator) handleRegister(msg *bus.Message) {
	skillID := msg.String("skill_id", "")
	if skillID == "" {
		c.logger.Warn("Got registration request without a skill_id", zap.Any("data", msg.Data))
		for _, key := range legacyResetKeys {
			if msg.Has(key) {
				c.logger.Warn("Deprecated reset request from GUI")
				c.handleResetRequest(msg)
				return
			}
		}
		return
	}
	c.Register(skillID)
}

// handleAck records a participant acknowledgment for the in-flight run
func (c *Coordinator) handleAck(msg *bus.Message) {
	skillID := msg.String("skill_id", "")
	if skillID == "" {
		return
	}
	c.Acknowledge(skillID)
}

// Acknowledge marks a participant's hardware reset as complete. When every
// currently-known participant has acknowledged, the waiting reset flow is
// released.
func (c *Coordinator) Acknowledge(skillID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.waiting {
		return
	}

	c.acks[skillID] = struct{}{}
	c.logger.Debug("Reset acknowledgment received", zap.String("skill_id", skillID))

	for id := range c.participants {
		if _, ok := c.acks[id]; !ok {
			return
		}
	}

	c.waiting = false
	close(c.done)
}

// handleResetRequest runs the full orchestration for one inbound request
func (c *Coordinator) handleResetRequest(msg *bus.Message) {
	c.logger.Info("Factory reset request", zap.Any("data", msg.Data))

	summary := &RunSummary{StartedAt: time.Now()}

	c.busClient.Emit(msg.Forward(TopicStart))
	c.busClient.Emit(msg.Forward(TopicPing))

	c.wipeStores(msg)
	c.logger.Info("Data reset completed")

	if msg.Bool("reset_hardware", true) {
		c.broadcastAndAwait(msg, summary)
	}

	if msg.Bool("script", true) {
		summary.ScriptRan = c.runScript(msg)
	}

	if msg.Bool("reboot", true) {
		summary.Rebooted = true
		c.busClient.Emit(msg.Forward(TopicReboot))
	}

	summary.FinishedAt = time.Now()

	c.mu.Lock()
	c.lastRun = summary
	c.mu.Unlock()
}

// broadcastAndAwait fans the request out to all registered participants and
// parks the reset flow until every one of them acknowledged or the deadline
// elapsed. A timeout is not an error; the sequence proceeds regardless.
func (c *Coordinator) broadcastAndAwait(msg *bus.Message, summary *RunSummary) {
	c.mu.Lock()
	if len(c.participants) == 0 {
		c.mu.Unlock()
		return
	}

	summary.Participants = sortedKeys(c.participants)
	c.acks = make(map[string]struct{})
	c.done = make(chan struct{})
	c.waiting = true
	done := c.done
	timeout := c.ackTimeout
	c.mu.Unlock()

	c.logger.Info("Waiting for reset participants",
		zap.Strings("participants", summary.Participants))

	c.busClient.Emit(msg.Forward(TopicBroadcast))

	select {
	case <-done:
	case <-time.After(timeout):
		summary.TimedOut = true
	}

	c.mu.Lock()
	c.waiting = false
	summary.Acknowledged = sortedKeys(c.acks)
	missing := make([]string, 0)
	for id := range c.participants {
		if _, ok := c.acks[id]; !ok {
			missing = append(missing, id)
		}
	}
	c.mu.Unlock()

	if summary.TimedOut {
		sort.Strings(missing)
		c.logger.Warn("Timed out waiting for reset participants",
			zap.Strings("missing", missing))
	}
}

// runScript executes the configured reset script, either internally or by
// delegating to the shell UI process. Returns whether a script ran (or was
// handed off).
func (c *Coordinator) runScript(msg *bus.Message) bool {
	script := expandUser(c.config.ResetScript)
	if script == "" {
		return false
	}
	if _, err := os.Stat(script); err != nil {
		c.logger.Warn("Reset script not found", zap.String("script", script))
		return false
	}

	c.logger.Info("Running reset script", zap.String("script", script))

	if c.useExternalFactoryReset() {
		// The shell UI executes the script and emits the completion
		// event itself; the coordinator does not wait for it.
		c.busClient.Emit(bus.NewMessage(TopicShellExec, map[string]interface{}{
			"script": script,
		}))
		return true
	}

	if err := c.runner.Shell(context.Background(), script); err != nil {
		c.logger.Error("Reset script failed", zap.Error(err))
	}
	c.busClient.Emit(msg.Forward(TopicComplete))
	return true
}

// useExternalFactoryReset decides the script delivery mode: an explicit
// config override wins, otherwise delegation is used when the shell UI
// process is running.
func (c *Coordinator) useExternalFactoryReset() bool {
	if c.config.UseExternalFactoryReset != nil {
		return *c.config.UseExternalFactoryReset
	}
	return c.services.ProcessRunning(context.Background(), c.config.ShellProcess)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func expandUser(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
