// Package gui talks to the external page-display subsystem over the bus.
// Display is best effort: the plugin never waits on the GUI and a missing
// GUI stack is not an error.
package gui

import (
	"sync"

	"phalsystem/internal/bus"

	"go.uber.org/zap"
)

// Interface owns a GUI session namespace for one plugin.
type Interface struct {
	busClient bus.MessageBus
	skillID   string
	logger    *zap.Logger
	values    map[string]interface{}
	mu        sync.Mutex
}

// PageOptions control how a page is displayed
type PageOptions struct {
	// OverrideIdle keeps the page up instead of returning to the idle screen.
	OverrideIdle bool

	// OverrideAnimations disables page transition animations.
	OverrideAnimations bool
}

// NewInterface creates a GUI interface for the given namespace
func NewInterface(busClient bus.MessageBus, skillID string, logger *zap.Logger) *Interface {
	return &Interface{
		busClient: busClient,
		skillID:   skillID,
		logger:    logger.Named("gui"),
		values:    make(map[string]interface{}),
	}
}

// SetValue updates a session value and pushes it to the GUI namespace
func (g *Interface) SetValue(key string, value interface{}) {
	g.mu.Lock()
	g.values[key] = value
	data := make(map[string]interface{}, len(g.values))
	for k, v := range g.values {
		data[k] = v
	}
	g.mu.Unlock()

	msg := bus.NewMessage("gui.value.set", map[string]interface{}{
		"__from": g.skillID,
		"data":   data,
	})
	if err := g.busClient.Emit(msg); err != nil {
		g.logger.Warn("Failed to push GUI values", zap.Error(err))
	}
}

// ShowPage asks the GUI to display a page from this plugin's namespace
func (g *Interface) ShowPage(page string, opts PageOptions) {
	msg := bus.NewMessage("gui.page.show", map[string]interface{}{
		"__from":       g.skillID,
		"page":         []interface{}{page},
		"__idle":       opts.OverrideIdle,
		"__animations": opts.OverrideAnimations,
	})
	if err := g.busClient.Emit(msg); err != nil {
		g.logger.Warn("Failed to show GUI page", zap.Error(err), zap.String("page", page))
	}
}

// ShowStatus is the common two-line status page used by the handlers
func (g *Interface) ShowStatus(status, label string) {
	g.SetValue("status", status)
	g.SetValue("label", label)
	g.ShowPage("Status.qml", PageOptions{})
}
