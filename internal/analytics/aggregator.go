// Package analytics answers aggregate queries over temperature readings.
//
// The central piece is the cache-first aggregator: a windowed-average
// query is served from the recency cache when the cache holds enough
// in-window samples, and falls back to an authoritative storage
// aggregate otherwise. The cache path is a coverage heuristic, not a
// completeness proof - once at least MinCacheSamples entries fall in the
// window it is assumed the cache holds the window, but in-window
// readings evicted earlier are silently omitted. The storage path is
// correct by construction at higher latency.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/weatherd/internal/cache"
	"github.com/xtxerr/weatherd/internal/errors"
	"github.com/xtxerr/weatherd/internal/logging"
	"github.com/xtxerr/weatherd/internal/reading"
	"github.com/xtxerr/weatherd/internal/storage"
)

// Config holds aggregator configuration.
type Config struct {
	// MinCacheSamples is the minimum number of in-window cache entries
	// required to trust the cache and skip storage.
	MinCacheSamples int

	// Window is the default aggregation window used when a query does
	// not specify one.
	Window time.Duration
}

// DefaultConfig returns a Config with the standard policy: trust the
// cache at 30 in-window samples, aggregate over the last hour.
func DefaultConfig() Config {
	return Config{
		MinCacheSamples: 30,
		Window:          time.Hour,
	}
}

// Query parameterizes a windowed-average request. The caller supplies
// the "now" reference so results are reproducible in tests.
type Query struct {
	Now      time.Time
	Window   time.Duration // zero means the configured default
	SensorID string        // empty means all sensors
}

// Stats holds aggregator counters.
type Stats struct {
	CacheServed   int64
	StorageServed int64
	NotFound      int64
	Errors        int64
}

// Aggregator serves windowed-average queries, cache first.
type Aggregator struct {
	cache  *cache.Cache
	store  *storage.Store
	config Config
	log    *slog.Logger

	// Collapses concurrent identical storage fallbacks into one query.
	group singleflight.Group

	cacheServed   atomic.Int64
	storageServed atomic.Int64
	notFound      atomic.Int64
	errs          atomic.Int64
}

// New creates an aggregator over the given cache and store.
func New(c *cache.Cache, s *storage.Store, cfg Config) *Aggregator {
	if cfg.MinCacheSamples <= 0 {
		cfg.MinCacheSamples = DefaultConfig().MinCacheSamples
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	return &Aggregator{
		cache:  c,
		store:  s,
		config: cfg,
		log:    logging.Component("analytics"),
	}
}

// AverageOverWindow computes the arithmetic mean temperature over
// [q.Now - window, q.Now], both ends inclusive.
//
// The recency cache is consulted first. If it holds at least
// MinCacheSamples entries inside the window the mean is computed from
// the cache alone and the result is marked SourceCache. Otherwise a
// single AVG/COUNT aggregate runs against durable storage; an empty
// window yields ErrNoData, and storage failures propagate - they are
// never reported as no-data.
func (a *Aggregator) AverageOverWindow(ctx context.Context, q Query) (reading.AverageResult, error) {
	window := q.Window
	if window <= 0 {
		window = a.config.Window
	}
	start := q.Now.Add(-window)
	end := q.Now

	if res, ok := a.fromCache(start, end, q.SensorID); ok {
		a.cacheServed.Add(1)
		return res, nil
	}

	res, err := a.fromStorage(ctx, start, end, q.SensorID)
	if err != nil {
		if errors.Is(err, errors.ErrNoData) {
			a.notFound.Add(1)
		} else {
			a.errs.Add(1)
		}
		return reading.AverageResult{}, err
	}

	a.storageServed.Add(1)
	return res, nil
}

// fromCache scans the full cache and answers from it when coverage is
// sufficient. The scan uses Recent, which leaves recency order intact.
func (a *Aggregator) fromCache(start, end time.Time, sensorID string) (reading.AverageResult, bool) {
	var (
		sum   float64
		count int64
	)

	for _, r := range a.cache.Recent(0) {
		if sensorID != "" && r.SensorID != sensorID {
			continue
		}
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		sum += r.Temperature
		count++
	}

	if count < int64(a.config.MinCacheSamples) {
		return reading.AverageResult{}, false
	}

	a.log.Debug("window served from cache", "count", count)

	return reading.AverageResult{
		Average:     round2(sum / float64(count)),
		WindowStart: start,
		WindowEnd:   end,
		Count:       count,
		Source:      reading.SourceCache,
	}, true
}

// fromStorage runs the authoritative aggregate, collapsing concurrent
// identical queries through singleflight.
func (a *Aggregator) fromStorage(ctx context.Context, start, end time.Time, sensorID string) (reading.AverageResult, error) {
	key := fmt.Sprintf("%d|%d|%s", start.UnixNano(), end.UnixNano(), sensorID)

	v, err, _ := a.group.Do(key, func() (any, error) {
		avg, count, err := a.store.WindowAggregate(ctx, storage.WindowQuery{
			SensorID: sensorID,
			Start:    start,
			End:      end,
		})
		if err != nil {
			return nil, err
		}
		return reading.AverageResult{
			Average:     round2(avg),
			WindowStart: start,
			WindowEnd:   end,
			Count:       count,
			Source:      reading.SourceStorage,
		}, nil
	})
	if err != nil {
		return reading.AverageResult{}, err
	}
	return v.(reading.AverageResult), nil
}

// Stats returns a snapshot of the aggregator counters.
func (a *Aggregator) Stats() Stats {
	return Stats{
		CacheServed:   a.cacheServed.Load(),
		StorageServed: a.storageServed.Load(),
		NotFound:      a.notFound.Load(),
		Errors:        a.errs.Load(),
	}
}

// round2 rounds to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
