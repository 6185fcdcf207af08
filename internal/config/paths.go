package config

import (
	"path/filepath"
	"strings"
)

const defaultLogsDir = "logs"

// LogDir returns paths.logs as an absolute path. Relative values are taken
// from the directory holding the config file.
func (c *AppConfig) LogDir() string {
	dir := strings.TrimSpace(c.Paths.Logs)
	if dir == "" {
		dir = defaultLogsDir
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	base := c.baseDir
	if base == "" {
		base = "."
	}
	abs, err := filepath.Abs(filepath.Join(base, dir))
	if err != nil {
		return filepath.Join(base, dir)
	}
	return abs
}
