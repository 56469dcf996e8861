// Package config turns viper settings into the typed configuration of a
// reconciliation run.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a configured location to an absolute, cleaned path.
// $VAR references and a leading ~ are expanded. Relative paths are taken
// against the working directory so the database, its checkpoints directory
// and the failure CSVs stay put when a command changes directory. An empty
// path stays empty, meaning "not configured".
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}

	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}

	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
