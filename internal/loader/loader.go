// Package loader handles configuration file loading and validation.
//
// This package is responsible for:
//   - Loading the YAML configuration file
//   - Expanding environment variables
//   - Validating the result against operational bounds
package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/weatherd/internal/errors"
)

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file. A missing file is not an
// error: the defaults are returned so the daemon runs without any
// configuration at all.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if cfg.Server.Listen == "" {
		return invalid("server.listen", "cannot be empty")
	}
	if cfg.Server.ShutdownTimeoutSec < 0 {
		return invalid("server.shutdown_timeout_sec", "cannot be negative")
	}

	if cfg.Storage.MinConns < 0 {
		return invalid("storage.min_conns", "cannot be negative")
	}
	if cfg.Storage.MaxConns < 1 {
		return invalid("storage.max_conns", "must be at least 1")
	}
	if cfg.Storage.MinConns > cfg.Storage.MaxConns {
		return invalid("storage.min_conns", "cannot exceed storage.max_conns")
	}
	if cfg.Storage.ConnTimeout.Duration() <= 0 {
		return invalid("storage.conn_timeout", "must be positive")
	}

	if cfg.Cache.Capacity < 1 {
		return invalid("cache.capacity", "must be at least 1")
	}

	if cfg.Analytics.MinCacheSamples < 1 {
		return invalid("analytics.min_cache_samples", "must be at least 1")
	}
	if cfg.Analytics.Window.Duration() <= 0 {
		return invalid("analytics.window", "must be positive")
	}
	if cfg.Analytics.SketchAccuracy <= 0 || cfg.Analytics.SketchAccuracy >= 1 {
		return invalid("analytics.sketch_accuracy", "must be in (0, 1)")
	}

	if cfg.Ingest.Workers < 1 {
		return invalid("ingest.workers", "must be at least 1")
	}
	if cfg.Ingest.QueueSize < 1 {
		return invalid("ingest.queue_size", "must be at least 1")
	}

	if cfg.Archive.Enabled {
		if cfg.Archive.Dir == "" {
			return invalid("archive.dir", "cannot be empty when enabled")
		}
		if cfg.Archive.Interval.Duration() <= 0 {
			return invalid("archive.interval", "must be positive")
		}
		if cfg.Archive.Retention.Duration() <= 0 {
			return invalid("archive.retention", "must be positive")
		}
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", "must be one of debug, info, warn, error")
	}

	return nil
}

func invalid(field, msg string) error {
	return fmt.Errorf("%s: %s: %w", field, msg, errors.ErrInvalidConfig)
}
