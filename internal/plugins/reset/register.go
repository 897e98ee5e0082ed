package reset

import (
	"phalsystem/pkg/plugin"
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        "factory-reset",
		Description: "Factory reset coordinator - participant registry, fan-out broadcast, wipe and reboot",
		Priority:    plugin.PriorityDefault,
		Order:       90, // After the action handlers (10)
		Factory:     createPlugin,
	})
}

// createPlugin creates a new reset coordinator from the plugin context.
func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	return NewCoordinator(ctx.Bus, ctx.Services, ctx.Runner, ctx.Config, ctx.Locations, ctx.Logger), nil
}
