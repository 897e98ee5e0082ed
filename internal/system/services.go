package system

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Services exposes the service-manager operations used by the plugin.
type Services struct {
	runner Runner
	logger *zap.Logger
}

// NewServices creates service helpers on top of a Runner
func NewServices(runner Runner, logger *zap.Logger) *Services {
	return &Services{
		runner: runner,
		logger: logger.Named("system"),
	}
}

// Active reports whether the unit is currently active
func (s *Services) Active(ctx context.Context, unit string) bool {
	err := s.runner.Run(ctx, "systemctl", "is-active", "--quiet", unit)
	return err == nil
}

// Installed reports whether the unit file exists on this host
func (s *Services) Installed(ctx context.Context, unit string) bool {
	out, err := s.runner.Output(ctx, "systemctl", "list-unit-files", unitName(unit))
	if err != nil {
		return false
	}
	return strings.Contains(out, unitName(unit))
}

// Enable enables a unit
func (s *Services) Enable(ctx context.Context, unit string) error {
	return s.runner.Run(ctx, "systemctl", "enable", unit)
}

// Disable disables a unit
func (s *Services) Disable(ctx context.Context, unit string) error {
	return s.runner.Run(ctx, "systemctl", "disable", unit)
}

// Start starts a unit
func (s *Services) Start(ctx context.Context, unit string) error {
	return s.runner.Run(ctx, "systemctl", "start", unit)
}

// Stop stops a unit
func (s *Services) Stop(ctx context.Context, unit string) error {
	return s.runner.Run(ctx, "systemctl", "stop", unit)
}

// Restart restarts a unit. With user set, the restart targets the calling
// user's service manager; with sudo set, the command is elevated.
func (s *Services) Restart(ctx context.Context, unit string, sudo, user bool) error {
	switch {
	case user:
		return s.runner.Run(ctx, "systemctl", "--user", "restart", unit)
	case sudo:
		return s.runner.Run(ctx, "sudo", "systemctl", "restart", unit)
	default:
		return s.runner.Run(ctx, "systemctl", "restart", unit)
	}
}

// Reboot issues the OS reboot, ignoring inhibitors
func (s *Services) Reboot(ctx context.Context) error {
	return s.runner.Run(ctx, "systemctl", "reboot", "-i")
}

// Poweroff turns the system completely off, ignoring inhibitors
func (s *Services) Poweroff(ctx context.Context) error {
	return s.runner.Run(ctx, "systemctl", "poweroff", "-i")
}

// ProcessRunning reports whether a process with the given name is alive
func (s *Services) ProcessRunning(ctx context.Context, name string) bool {
	err := s.runner.Run(ctx, "pgrep", "-x", name)
	return err == nil
}

// NTPSync forces the clock to synchronize with time servers, using
// whichever time service is installed. Returns an error only when no time
// service exists at all.
func (s *Services) NTPSync(ctx context.Context) error {
	switch {
	case s.Installed(ctx, "ntp"):
		// Best effort: a failing stop must not block the resync
		if err := s.Stop(ctx, "ntp"); err != nil {
			s.logger.Warn("Failed to stop ntp before resync", zap.Error(err))
		}
		if err := s.runner.Run(ctx, "ntpd", "-gq"); err != nil {
			s.logger.Warn("ntpd resync failed", zap.Error(err))
		}
		if err := s.Start(ctx, "ntp"); err != nil {
			s.logger.Warn("Failed to start ntp after resync", zap.Error(err))
		}
		return nil
	case s.Installed(ctx, "systemd-timesyncd"):
		if err := s.Stop(ctx, "systemd-timesyncd"); err != nil {
			s.logger.Warn("Failed to stop systemd-timesyncd", zap.Error(err))
		}
		if err := s.Start(ctx, "systemd-timesyncd"); err != nil {
			s.logger.Warn("Failed to start systemd-timesyncd", zap.Error(err))
		}
		return nil
	default:
		return fmt.Errorf("no time sync service installed")
	}
}

// TimeServiceActive reports whether any known time service is active
func (s *Services) TimeServiceActive(ctx context.Context) bool {
	return s.Active(ctx, "ntp") || s.Active(ctx, "systemd-timesyncd")
}

func unitName(unit string) string {
	if strings.Contains(unit, ".") {
		return unit
	}
	return unit + ".service"
}
