package actions

import (
	"phalsystem/pkg/plugin"
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        "system-actions",
		Description: "Privileged OS actions - SSH toggle, NTP sync, reboot/shutdown, language, core service restart",
		Priority:    plugin.PriorityDefault,
		Order:       10, // Before the reset coordinator (90) so the reboot topic has its handler
		Factory:     createPlugin,
	})
}

// createPlugin creates a new actions manager from the plugin context.
func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	return NewManager(ctx.Bus, ctx.Services, ctx.Runner, ctx.Config, ctx.Locations, ctx.Logger), nil
}
