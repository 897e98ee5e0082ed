package plugin

import (
	"phalsystem/internal/bus"
	"phalsystem/internal/config"
	"phalsystem/internal/system"

	"go.uber.org/zap"
)

// Context provides dependencies to plugins during initialization.
// It wraps the core services needed by all plugins in a single struct
// for cleaner constructor signatures.
type Context struct {
	// Bus provides access to the assistant message bus for emitting
	// events and registering topic handlers.
	Bus bus.MessageBus

	// Services exposes the OS service-manager operations.
	Services *system.Services

	// Runner executes raw OS commands and operator scripts. Plugins
	// should prefer Services where a helper exists.
	Runner system.Runner

	// Config is the loaded plugin configuration.
	Config *config.SystemConfig

	// Locations holds the resolved filesystem paths the plugin touches.
	Locations *config.Locations

	// Logger is a structured logger for the plugin to use.
	// Plugins should use logger.Named("pluginname") for namespacing.
	Logger *zap.Logger
}

// NewContext creates a new plugin context with all required dependencies.
func NewContext(
	busClient bus.MessageBus,
	services *system.Services,
	runner system.Runner,
	cfg *config.SystemConfig,
	locations *config.Locations,
	logger *zap.Logger,
) *Context {
	return &Context{
		Bus:       busClient,
		Services:  services,
		Runner:    runner,
		Config:    cfg,
		Locations: locations,
		Logger:    logger,
	}
}
