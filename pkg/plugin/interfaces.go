// Package plugin provides the plugin system interfaces and registry for
// the system PHAL runtime. Plugins can register themselves with the global
// registry using init() functions, allowing for compile-time plugin
// selection and override mechanisms for admin-mode implementations.
package plugin

// Plugin is the core interface that all plugins must implement.
// A plugin owns a group of bus topics and the OS side effects behind them.
type Plugin interface {
	// Name returns the unique identifier for this plugin.
	// This name is used for registration and logging.
	Name() string

	// Start begins the plugin's operation.
	// - Registers bus subscriptions
	// - Emits any discovery events
	// - Returns error if initialization fails
	Start() error

	// Stop gracefully shuts down the plugin.
	// - Removes all bus subscriptions
	// - Releases resources
	Stop()
}

// Factory is a function that creates a new plugin instance given a context.
// Factories are registered with the global registry and called during
// application startup to instantiate plugins.
type Factory func(ctx *Context) (Plugin, error)
