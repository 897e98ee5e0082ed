package reset

import (
	"os"

	"phalsystem/internal/bus"

	"go.uber.org/zap"
)

// wipeStores deletes the on-disk stores selected by the request flags.
// Every deletion is best effort: a missing path is not an error and a
// failed removal is logged and skipped so one bad path cannot abort the
// reset sequence.
func (c *Coordinator) wipeStores(msg *bus.Message) {
	c.removeFile(c.locations.OldIdentityFile)
	c.removeFile(c.locations.IdentityFile)

	if msg.Bool("wipe_cache", true) {
		c.removeDir(c.locations.CacheDir)
	}

	if msg.Bool("wipe_data", true) {
		c.removeDir(c.locations.DataDir)
		for _, store := range c.locations.AuxStores {
			c.removeFile(store)
		}
	}

	if msg.Bool("wipe_logs", true) {
		c.removeDir(c.locations.StateDir)
	}

	if msg.Bool("wipe_configs", true) {
		c.removeFile(c.locations.LegacyConfig)
		c.removeFile(c.locations.UserConfig)
		c.removeFile(c.locations.WebConfigCache)
	}
}

func (c *Coordinator) removeFile(path string) {
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if err := os.Remove(path); err != nil {
		c.logger.Warn("Failed to remove file", zap.String("path", path), zap.Error(err))
	}
}

func (c *Coordinator) removeDir(path string) {
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		c.logger.Warn("Failed to remove directory", zap.String("path", path), zap.Error(err))
	}
}
