// Package ingest implements the write path for temperature readings.
//
// Readings are written through to durable storage first (the source of
// truth) and then mirrored into the recency cache. A failed storage
// write aborts the whole operation - nothing reaches the cache. The
// cache mirror itself cannot fail, and if it ever did it would not roll
// back the committed storage write.
//
// Producers do not wait for the durable write: Submit enqueues and a
// small worker pool drains the queue, so the acknowledgment path stays
// off the storage path.
package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/weatherd/internal/analytics"
	"github.com/xtxerr/weatherd/internal/cache"
	"github.com/xtxerr/weatherd/internal/errors"
	"github.com/xtxerr/weatherd/internal/logging"
	"github.com/xtxerr/weatherd/internal/reading"
	"github.com/xtxerr/weatherd/internal/storage"
)

// Config holds ingestion service configuration.
type Config struct {
	// Workers is the number of goroutines draining the queue.
	Workers int

	// QueueSize is the queue capacity; Submit fails with ErrQueueFull
	// rather than blocking when it is reached.
	QueueSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 1024,
	}
}

// Stats holds ingestion counters.
type Stats struct {
	Received int64
	Stored   int64
	Failed   int64
	Dropped  int64
}

// Service accepts readings and persists them asynchronously.
type Service struct {
	store  *storage.Store
	cache  *cache.Cache
	dist   *analytics.Distribution // may be nil
	config Config
	log    *slog.Logger

	// mu guards the queue against a Submit racing the close in Stop.
	mu      sync.RWMutex
	queue   chan reading.Reading
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// now is the clock used for defaulted timestamps.
	now func() time.Time

	received atomic.Int64
	stored   atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

// New creates an ingestion service. dist may be nil when no distribution
// tracking is wanted.
func New(store *storage.Store, c *cache.Cache, dist *analytics.Distribution, cfg Config) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &Service{
		store:  store,
		cache:  c,
		dist:   dist,
		config: cfg,
		log:    logging.Component("ingest"),
		queue:  make(chan reading.Reading, cfg.QueueSize),
		now:    time.Now,
	}
}

// Start launches the worker pool.
func (s *Service) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.Wrap(errors.ErrInternal, "service already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.log.Info("ingestion started", "workers", s.config.Workers, "queue_size", s.config.QueueSize)
	return nil
}

// Stop drains the queue and stops the workers. Readings already
// accepted by Submit are persisted before Stop returns.
func (s *Service) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	s.mu.Lock()
	close(s.queue)
	s.mu.Unlock()
	s.wg.Wait()
	s.cancel()

	s.log.Info("ingestion stopped",
		"stored", s.stored.Load(), "failed", s.failed.Load())
}

// Submit accepts a reading for asynchronous persistence. The timestamp
// is defaulted here, exactly once, so the storage row and the cache
// mirror always agree. Returns ErrQueueFull when the queue is at
// capacity and ErrIngestStopped after Stop.
func (s *Service) Submit(r reading.Reading) error {
	if err := r.Validate(); err != nil {
		return err
	}

	if r.Timestamp.IsZero() {
		r.Timestamp = s.now().UTC()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running.Load() {
		return errors.ErrIngestStopped
	}

	s.received.Add(1)

	select {
	case s.queue <- r:
		return nil
	default:
		s.dropped.Add(1)
		return errors.ErrQueueFull
	}
}

// worker drains the queue until it is closed. The sensor id rides the
// context so every log line below the worker carries it.
func (s *Service) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	for r := range s.queue {
		rctx := logging.ContextWithSensorID(ctx, r.SensorID)
		if err := s.Store(rctx, r); err != nil {
			logging.WithContext(rctx).Error("store reading failed",
				"error", err, "worker", id)
		}
	}
}

// Store synchronously persists one reading: durable insert first, cache
// mirror second. The caller must have assigned the timestamp already
// (Submit does this); Store defaults it only as a safety net for direct
// callers.
func (s *Service) Store(ctx context.Context, r reading.Reading) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now().UTC()
	}

	id, err := s.store.InsertReading(ctx, r)
	if err != nil {
		s.failed.Add(1)
		// No cache mirror on storage failure.
		return err
	}
	r.ID = id

	s.cache.Put(r.CacheKey(), r)
	if s.dist != nil {
		s.dist.Add(r.Temperature)
	}

	s.stored.Add(1)
	s.log.Debug("reading stored",
		"sensor_id", r.SensorID, "temperature", r.Temperature, "id", id)
	return nil
}

// Stats returns a snapshot of the ingestion counters.
func (s *Service) Stats() Stats {
	return Stats{
		Received: s.received.Load(),
		Stored:   s.stored.Load(),
		Failed:   s.failed.Load(),
		Dropped:  s.dropped.Load(),
	}
}

// QueueDepth returns the number of readings waiting in the queue.
func (s *Service) QueueDepth() int {
	return len(s.queue)
}
