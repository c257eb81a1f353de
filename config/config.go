// Package config loads the TOML-based tunables for a kestrel App: pool
// sizing and logging setup. It follows the same load-defaults-then-overlay
// pattern used elsewhere for host configuration, just scoped to the two
// concerns the engine core itself owns.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full set of host-tunable engine settings.
type Config struct {
	Pool    PoolConfig    `toml:"pool"`
	Logging LoggingConfig `toml:"logging"`
}

// PoolConfig mirrors pool.Config's tunables as TOML fields; App converts
// this into a pool.Config when constructing the engine's thread pool.
type PoolConfig struct {
	Workers        int           `toml:"workers"`
	SpinBound      int           `toml:"spin_bound"`
	ParkBackoff    time.Duration `toml:"park_backoff"`
	LocalQueueSize int           `toml:"local_queue_size"`
}

// LoggingConfig selects the zap logger's verbosity and encoding.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Default returns the configuration used when no file is loaded. Workers
// and SpinBound are left at zero so pool.New falls back to its own
// runtime-derived defaults rather than this package hardcoding a worker
// count.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads and decodes the TOML file at path, overlaying it onto
// Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
