package config

import (
	"fmt"
	"sync/atomic"
)

// active is the configuration of the running process.
var active atomic.Pointer[Config]

// GetConfig returns the active configuration, or nil before the first
// successful ReloadConfig.
func GetConfig() *Config {
	return active.Load()
}

// SetConfig replaces the active configuration. Intended for tests.
func SetConfig(cfg *Config) {
	active.Store(cfg)
}

// ReloadConfig loads path and makes it the active configuration. When
// allowMissing is set, a missing file loads the defaults. On error the
// active configuration is left untouched.
func ReloadConfig(path string, allowMissing bool) error {
	load := LoadConfigWithEnvOverrides
	if allowMissing {
		load = LoadConfigOrDefaults
	}
	cfg, err := load(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	active.Store(cfg)
	return nil
}
