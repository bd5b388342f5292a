// Package loader - Configuration Types
//
// Defines the YAML configuration structure for weatherd.
//
//	server:     Network, shutdown behavior
//	storage:    DuckDB file and connection pool sizing
//	cache:      In-memory recency cache
//	analytics:  Window aggregation and distribution tracking
//	ingest:     Asynchronous write path
//	archive:    Parquet cold storage
//	logging:    Level and output format
package loader

import (
	"time"

	"github.com/xtxerr/weatherd/config"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for weatherd.
type Config struct {
	// Server configures the HTTP listener and shutdown behavior.
	Server ServerConfig `yaml:"server"`

	// Storage configures the DuckDB database and connection pool.
	Storage StorageConfig `yaml:"storage"`

	// Cache configures the in-memory recency cache.
	Cache CacheConfig `yaml:"cache"`

	// Analytics configures window aggregation.
	Analytics AnalyticsConfig `yaml:"analytics"`

	// Ingest configures the asynchronous write path.
	Ingest IngestConfig `yaml:"ingest"`

	// Archive configures Parquet cold storage.
	Archive ArchiveConfig `yaml:"archive"`

	// Logging configures log level and format.
	Logging LoggingConfig `yaml:"logging"`
}

// =============================================================================
// Server Configuration
// =============================================================================

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Listen is the HTTP listen address.
	// Format: "host:port" or ":port"
	// Default: "0.0.0.0:8000"
	Listen string `yaml:"listen"`

	// ShutdownTimeoutSec is how long graceful shutdown waits for
	// in-flight requests.
	// Default: 5
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

// =============================================================================
// Storage Configuration (DuckDB)
// =============================================================================

// StorageConfig configures the database and connection pool.
type StorageConfig struct {
	// Path is the database file path.
	// Empty means in-memory (testing only).
	// Default: "weather.db"
	Path string `yaml:"path"`

	// MinConns is the number of connections opened at startup.
	// Default: 2
	MinConns int `yaml:"min_conns"`

	// MaxConns is the number of connections the pool tracks. Demand
	// beyond this is served by temporary connections that are closed
	// on release rather than queued.
	// Default: 5
	MaxConns int `yaml:"max_conns"`

	// ConnTimeout bounds how long opening a single connection may take.
	// Default: 30s
	ConnTimeout Duration `yaml:"conn_timeout"`
}

// =============================================================================
// Cache Configuration
// =============================================================================

// CacheConfig configures the recency cache.
type CacheConfig struct {
	// Capacity is the number of readings the cache holds before the
	// least recently used entry is evicted.
	// Default: 100
	Capacity int `yaml:"capacity"`
}

// =============================================================================
// Analytics Configuration
// =============================================================================

// AnalyticsConfig configures window aggregation.
type AnalyticsConfig struct {
	// MinCacheSamples is the number of in-window cached readings
	// required before an aggregate is answered from the cache alone.
	// Below it, the query falls through to storage.
	// Default: 30
	MinCacheSamples int `yaml:"min_cache_samples"`

	// Window is the default aggregation window.
	// Default: 1h
	Window Duration `yaml:"window"`

	// SketchAccuracy is the DDSketch relative accuracy for the
	// temperature distribution (0.01 = 1% error).
	// Default: 0.01
	SketchAccuracy float64 `yaml:"sketch_accuracy"`
}

// =============================================================================
// Ingest Configuration
// =============================================================================

// IngestConfig configures the asynchronous write path.
type IngestConfig struct {
	// Workers is the number of goroutines draining the queue.
	// Default: 4
	Workers int `yaml:"workers"`

	// QueueSize is the submission queue capacity. Submissions fail
	// rather than block when it is reached.
	// Default: 1024
	QueueSize int `yaml:"queue_size"`
}

// =============================================================================
// Archive Configuration (Parquet)
// =============================================================================

// ArchiveConfig configures Parquet cold storage.
type ArchiveConfig struct {
	// Enabled enables the periodic archive sweep.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Dir is the directory Parquet files are written to.
	// Default: "archive"
	Dir string `yaml:"dir"`

	// Interval between sweeps.
	// Default: 1h
	Interval Duration `yaml:"interval"`

	// Retention is how long readings stay in the hot table.
	// Default: 168h (7 days)
	Retention Duration `yaml:"retention"`

	// Compression codec: "zstd", "snappy", "lz4", "gzip" or "none".
	// Default: zstd
	Compression string `yaml:"compression"`
}

// =============================================================================
// Logging Configuration
// =============================================================================

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// JSON switches output to structured JSON lines.
	// Default: false
	JSON bool `yaml:"json"`
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:             config.DefaultListenAddress,
			ShutdownTimeoutSec: config.DefaultShutdownTimeoutSec,
		},

		Storage: StorageConfig{
			Path:        "weather.db",
			MinConns:    config.DefaultPoolMinConns,
			MaxConns:    config.DefaultPoolMaxConns,
			ConnTimeout: Duration(config.DefaultPoolConnTimeoutSec * time.Second),
		},

		Cache: CacheConfig{
			Capacity: config.DefaultCacheCapacity,
		},

		Analytics: AnalyticsConfig{
			MinCacheSamples: config.DefaultMinCacheSamples,
			Window:          Duration(config.DefaultWindowDuration),
			SketchAccuracy:  config.DefaultSketchAccuracy,
		},

		Ingest: IngestConfig{
			Workers:   config.DefaultIngestWorkers,
			QueueSize: config.DefaultIngestQueueSize,
		},

		Archive: ArchiveConfig{
			Enabled:     false,
			Dir:         config.DefaultArchiveDir,
			Interval:    Duration(config.DefaultArchiveInterval),
			Retention:   Duration(config.DefaultArchiveRetention),
			Compression: config.DefaultArchiveCompression,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// Custom Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		// Try as int (seconds)
		var i int
		if err := unmarshal(&i); err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
