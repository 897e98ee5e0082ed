// Package actions implements the one-shot system action handlers: SSH
// toggling, NTP resync, reboot/shutdown, locale change and core service
// restart. Each handler is independent and stateless; failures are logged,
// never surfaced across the bus.
package actions

import (
	"context"
	"fmt"
	"os"

	"phalsystem/internal/bus"
	"phalsystem/internal/config"
	"phalsystem/internal/gui"
	"phalsystem/internal/system"

	"go.uber.org/zap"
)

// SkillID is the GUI namespace and bus identity of this plugin
const SkillID = "ovos-PHAL-plugin-system"

// Bus topics handled by the action dispatcher
const (
	TopicNTPSync          = "system.ntp.sync"
	TopicNTPSyncComplete  = "system.ntp.sync.complete"
	TopicSSHStatus        = "system.ssh.status"
	TopicSSHEnable        = "system.ssh.enable"
	TopicSSHDisable       = "system.ssh.disable"
	TopicReboot           = "system.reboot"
	TopicShutdown         = "system.shutdown"
	TopicLanguage         = "system.configure.language"
	TopicLanguageComplete = "system.configure.language.complete"
	TopicServiceRestart   = "system.mycroft.service.restart"
)

// Manager dispatches inbound system events to their handlers
type Manager struct {
	busClient bus.MessageBus
	services  *system.Services
	runner    system.Runner
	config    *config.SystemConfig
	locations *config.Locations
	gui       *gui.Interface
	logger    *zap.Logger
	subs      []bus.Subscription
}

// NewManager creates a new system actions manager
func NewManager(busClient bus.MessageBus, services *system.Services, runner system.Runner,
	cfg *config.SystemConfig, locations *config.Locations, logger *zap.Logger) *Manager {
	return &Manager{
		busClient: busClient,
		services:  services,
		runner:    runner,
		config:    cfg,
		locations: locations,
		gui:       gui.NewInterface(busClient, SkillID, logger),
		logger:    logger.Named("actions"),
	}
}

// Name returns the plugin identifier
func (m *Manager) Name() string {
	return "system-actions"
}

// Start registers all bus handlers
func (m *Manager) Start() error {
	m.logger.Info("Starting System Actions Manager")

	for topic, handler := range map[string]bus.Handler{
		TopicNTPSync:        m.handleNTPSync,
		TopicSSHStatus:      m.handleSSHStatus,
		TopicSSHEnable:      m.handleSSHEnable,
		TopicSSHDisable:     m.handleSSHDisable,
		TopicReboot:         m.handleReboot,
		TopicShutdown:       m.handleShutdown,
		TopicLanguage:       m.handleConfigureLanguage,
		TopicServiceRestart: m.handleServiceRestart,
	} {
		sub, err := m.busClient.On(topic, handler)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		m.subs = append(m.subs, sub)
	}

	m.logger.Info("System Actions Manager started successfully")
	return nil
}

// Stop removes all bus subscriptions
func (m *Manager) Stop() {
	for _, sub := range m.subs {
		sub.Unsubscribe()
	}
	m.subs = nil
	m.logger.Info("System Actions Manager stopped")
}

// handleSSHEnable enables and starts the SSH service
func (m *Manager) handleSSHEnable(msg *bus.Message) {
	ctx := context.Background()

	if err := m.services.Enable(ctx, m.config.SSHService); err != nil {
		m.logger.Warn("Failed to enable ssh service", zap.Error(err))
	}
	if err := m.services.Start(ctx, m.config.SSHService); err != nil {
		m.logger.Warn("Failed to start ssh service", zap.Error(err))
	}

	// The shell UI provides its own feedback and asks not to display
	if msg.Bool("display", true) {
		m.gui.ShowStatus("Enabled", "SSH Enabled")
	}
}

// handleSSHDisable stops and disables the SSH service
func (m *Manager) handleSSHDisable(msg *bus.Message) {
	ctx := context.Background()

	if err := m.services.Stop(ctx, m.config.SSHService); err != nil {
		m.logger.Warn("Failed to stop ssh service", zap.Error(err))
	}
	if err := m.services.Disable(ctx, m.config.SSHService); err != nil {
		m.logger.Warn("Failed to disable ssh service", zap.Error(err))
	}

	if msg.Bool("display", true) {
		m.gui.ShowStatus("Disabled", "SSH Disabled")
	}
}

// handleSSHStatus checks the SSH service state and emits a response
func (m *Manager) handleSSHStatus(msg *bus.Message) {
	enabled := m.services.Active(context.Background(), m.config.SSHService)
	m.busClient.Emit(msg.Response(map[string]interface{}{"enabled": enabled}))
}

// handleNTPSync forces the system clock to synchronize with time servers
func (m *Manager) handleNTPSync(msg *bus.Message) {
	ctx := context.Background()

	if err := m.services.NTPSync(ctx); err != nil {
		m.logger.Debug("No time sync service installed")
		return
	}

	if m.services.TimeServiceActive(ctx) {
		// Display defaults to false: the sync is usually part of a larger
		// flow that provides its own UI
		if msg.Bool("display", false) {
			m.gui.ShowStatus("Enabled", "Clock updated")
		}
		m.busClient.Emit(msg.Reply(TopicNTPSyncComplete, nil))
	} else {
		m.logger.Debug("No time sync service active after resync")
	}
}

// handleReboot shuts down and restarts the system
func (m *Manager) handleReboot(msg *bus.Message) {
	if msg.Bool("display", true) {
		m.gui.ShowPage("Reboot.qml", gui.PageOptions{
			OverrideIdle:       true,
			OverrideAnimations: true,
		})
	}

	script := expandUser(m.config.RebootScript)
	m.logger.Info("Reboot requested", zap.String("script", script))

	if script != "" && fileExists(script) {
		if err := m.runner.Shell(context.Background(), script); err != nil {
			m.logger.Warn("Reboot script failed", zap.Error(err))
		}
		return
	}

	if err := m.services.Reboot(context.Background()); err != nil {
		m.logger.Warn("Reboot command failed", zap.Error(err))
	}
}

// handleShutdown turns the system completely off
func (m *Manager) handleShutdown(msg *bus.Message) {
	if msg.Bool("display", true) {
		m.gui.ShowPage("Shutdown.qml", gui.PageOptions{
			OverrideIdle:       true,
			OverrideAnimations: true,
		})
	}

	script := expandUser(m.config.ShutdownScript)
	m.logger.Info("Shutdown requested", zap.String("script", script))

	if script != "" && fileExists(script) {
		if err := m.runner.Shell(context.Background(), script); err != nil {
			m.logger.Warn("Shutdown script failed", zap.Error(err))
		}
		return
	}

	if err := m.services.Poweroff(context.Background()); err != nil {
		m.logger.Warn("Poweroff command failed", zap.Error(err))
	}
}

// handleConfigureLanguage persists the requested language and announces
// the normalized code
func (m *Manager) handleConfigureLanguage(msg *bus.Message) {
	languageCode := msg.String("language_code", "en_US")

	profile := fmt.Sprintf("export LANG=%s\n", languageCode)
	if err := os.WriteFile(m.locations.BashProfile, []byte(profile), 0o644); err != nil {
		m.logger.Warn("Failed to write shell profile", zap.Error(err))
	}

	normalized := normalizeLang(languageCode)

	if err := config.UpdateUserConfig(m.locations.UserConfig, map[string]interface{}{
		"lang": normalized,
	}); err != nil {
		m.logger.Warn("Failed to update user config", zap.Error(err))
	}

	// Display defaults to false, like the NTP handler
	if msg.Bool("display", false) {
		m.gui.ShowStatus("Enabled", fmt.Sprintf("Language changed to %s", normalized))
	}

	m.busClient.Emit(bus.NewMessage(TopicLanguageComplete, map[string]interface{}{
		"lang": normalized,
	}))
}

// handleServiceRestart restarts the core assistant service, retrying with
// elevated privileges when the user-scope restart fails
func (m *Manager) handleServiceRestart(msg *bus.Message) {
	if msg.Bool("display", true) {
		m.gui.ShowPage("Restart.qml", gui.PageOptions{
			OverrideIdle:       true,
			OverrideAnimations: true,
		})
	}

	if err := m.restartCoreService(); err != nil {
		m.logger.Error("No assistant service could be restarted", zap.Error(err))
	}
}

// restartCoreService tries the user scope first, then falls back to sudo.
// This is the only handler whose double failure surfaces a negative result.
func (m *Manager) restartCoreService() error {
	ctx := context.Background()
	service := m.config.CoreService

	if err := m.services.Restart(ctx, service, false, true); err == nil {
		return nil
	}

	if err := m.services.Restart(ctx, service, m.config.UseSudo(), false); err != nil {
		return fmt.Errorf("failed to restart %s: %w", service, err)
	}
	return nil
}
