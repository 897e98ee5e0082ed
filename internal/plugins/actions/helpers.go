package actions

import (
	"os"
	"path/filepath"
	"strings"
)

// normalizeLang lowers the code and swaps underscores for dashes, matching
// what the rest of the assistant stack expects ("pt_PT" -> "pt-pt").
func normalizeLang(code string) string {
	return strings.ToLower(strings.ReplaceAll(code, "_", "-"))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
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
