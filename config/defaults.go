// Package config provides configuration defaults and utilities
// for the weatherd application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or environment variables.
package config

import "time"

// =============================================================================
// Network Defaults
// =============================================================================

const (
	// DefaultListenAddress is the default HTTP listen address.
	// Override via config: server.listen
	DefaultListenAddress = "0.0.0.0:8000"

	// DefaultShutdownTimeoutSec is how long to wait for in-flight requests
	// during graceful shutdown before the listener is torn down.
	// Override via config: server.shutdown_timeout_sec
	DefaultShutdownTimeoutSec = 5

	// DefaultRecentLimit is the default number of readings returned by
	// the recent-readings endpoint when no limit is given.
	// Override per request: ?limit=
	DefaultRecentLimit = 10

	// MaxRecentLimit caps the recent-readings limit to keep responses small.
	MaxRecentLimit = 100
)

// =============================================================================
// Cache Defaults
// =============================================================================

const (
	// DefaultCacheCapacity is the maximum number of readings held in the
	// recency cache. When full, the least recently used entry is evicted.
	// Override via config: cache.capacity
	DefaultCacheCapacity = 100
)

// =============================================================================
// Connection Pool Defaults
// =============================================================================

const (
	// DefaultPoolMinConns is the number of connections eagerly created
	// when the pool is initialized.
	// Override via config: storage.min_conns
	DefaultPoolMinConns = 2

	// DefaultPoolMaxConns is the maximum number of pooled connections.
	// When exhausted, acquire degrades to a temporary untracked connection
	// instead of blocking the caller.
	// Override via config: storage.max_conns
	DefaultPoolMaxConns = 5

	// DefaultPoolConnTimeoutSec bounds connection creation against the
	// storage engine.
	// Override via config: storage.conn_timeout
	DefaultPoolConnTimeoutSec = 30
)

// =============================================================================
// Analytics Defaults
// =============================================================================

const (
	// DefaultMinCacheSamples is the minimum number of in-window cache
	// entries required before the aggregator trusts the cache and skips
	// the storage fallback. A coverage heuristic, not a completeness
	// guarantee: evicted in-window readings are silently omitted.
	// Override via config: analytics.min_cache_samples
	DefaultMinCacheSamples = 30

	// DefaultWindowDuration is the aggregation window for the
	// average-temperature query.
	// Override via config: analytics.window
	DefaultWindowDuration = time.Hour

	// DefaultSketchAccuracy is the DDSketch relative accuracy used for
	// the temperature distribution quantiles.
	// Override via config: analytics.sketch_accuracy
	DefaultSketchAccuracy = 0.01
)

// =============================================================================
// Ingestion Defaults
// =============================================================================

const (
	// DefaultIngestWorkers is the number of goroutines draining the
	// ingestion queue. Each worker owns one storage write at a time.
	// Override via config: ingest.workers
	DefaultIngestWorkers = 4

	// DefaultIngestQueueSize is the ingestion queue capacity. When full,
	// Submit returns an error instead of blocking the producer.
	// Override via config: ingest.queue_size
	DefaultIngestQueueSize = 1024
)

// =============================================================================
// Validation Bounds
// =============================================================================

const (
	// MinTemperature is the lowest accepted reading in degrees Celsius.
	MinTemperature = -50.0

	// MaxTemperature is the highest accepted reading in degrees Celsius.
	MaxTemperature = 60.0
)

// =============================================================================
// Archive Defaults
// =============================================================================

const (
	// DefaultArchiveDir is the directory Parquet archive files are
	// written to, relative to the working directory.
	// Override via config: archive.dir
	DefaultArchiveDir = "archive"

	// DefaultArchiveInterval is how often the archiver sweeps aged
	// readings out of the hot table into Parquet files.
	// Override via config: archive.interval
	DefaultArchiveInterval = time.Hour

	// DefaultArchiveRetention is how long readings stay in the hot table
	// before being exported and pruned.
	// Override via config: archive.retention
	DefaultArchiveRetention = 7 * 24 * time.Hour

	// DefaultArchiveCompression is the Parquet compression codec.
	// Override via config: archive.compression
	DefaultArchiveCompression = "zstd"
)
