// Package server provides the HTTP API for weatherd.
//
// The server exposes ingestion, recent readings, window analytics and
// operational status over JSON. It owns the listener lifecycle only;
// the ingestion service, aggregator and storage layers are injected
// and shut down by the daemon in their own order.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xtxerr/weatherd/config"
	"github.com/xtxerr/weatherd/internal/analytics"
	"github.com/xtxerr/weatherd/internal/cache"
	"github.com/xtxerr/weatherd/internal/errors"
	"github.com/xtxerr/weatherd/internal/ingest"
	"github.com/xtxerr/weatherd/internal/logging"
	"github.com/xtxerr/weatherd/internal/pool"
	"github.com/xtxerr/weatherd/internal/reading"
	"github.com/xtxerr/weatherd/internal/storage"
)

// Config holds server configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Listen:          config.DefaultListenAddress,
		ShutdownTimeout: config.DefaultShutdownTimeoutSec * time.Second,
	}
}

// Server is the weatherd HTTP API.
type Server struct {
	config     Config
	ingest     *ingest.Service
	store      *storage.Store
	cache      *cache.Cache
	aggregator *analytics.Aggregator
	dist       *analytics.Distribution
	pool       *pool.Pool
	router     *gin.Engine
	log        *slog.Logger

	startedAt time.Time
	reqSeq    atomic.Uint64
}

// New creates the server and wires its routes.
func New(cfg Config, svc *ingest.Service, store *storage.Store, c *cache.Cache,
	agg *analytics.Aggregator, dist *analytics.Distribution, p *pool.Pool) *Server {

	if cfg.Listen == "" {
		cfg.Listen = DefaultConfig().Listen
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		config:     cfg,
		ingest:     svc,
		store:      store,
		cache:      c,
		aggregator: agg,
		dist:       dist,
		pool:       p,
		router:     router,
		log:        logging.Component("server"),
		startedAt:  time.Now().UTC(),
	}

	router.Use(s.requestLogger(), gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	s.router.POST("/readings", s.handleSubmitReading)
	s.router.GET("/readings/recent", s.handleRecentReadings)
	s.router.DELETE("/readings", s.handleDeleteReadings)

	s.router.GET("/analytics/average-hour", s.handleAverageHour)
	s.router.GET("/status", s.handleStatus)

	s.router.POST("/simulate", s.handleSimulate)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger assigns each request an id, carries it through the
// request context, and logs one line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logging.ContextWithRequestID(c.Request.Context(), s.reqSeq.Add(1))
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		logging.WithContext(ctx).Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleSubmitReading(c *gin.Context) {
	var r reading.Reading
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := s.ingest.Submit(r); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":     "reading accepted",
		"sensor_id":   r.SensorID,
		"temperature": r.Temperature,
	})
}

func (s *Server) handleRecentReadings(c *gin.Context) {
	limit := config.DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > config.MaxRecentLimit {
		limit = config.MaxRecentLimit
	}

	readings, err := s.store.RecentReadings(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"readings": readings,
		"count":    len(readings),
	})
}

func (s *Server) handleAverageHour(c *gin.Context) {
	result, err := s.aggregator.AverageOverWindow(c.Request.Context(), analytics.Query{
		Now:      time.Now().UTC(),
		SensorID: c.Query("sensor_id"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleStatus(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := s.store.TotalCount(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	lastHour, err := s.store.CountSince(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		s.writeError(c, err)
		return
	}

	poolStats := s.pool.Stats()
	aggStats := s.aggregator.Stats()
	ingestStats := s.ingest.Stats()

	status := gin.H{
		"uptime_sec":         int64(time.Since(s.startedAt).Seconds()),
		"total_readings":     total,
		"readings_last_hour": lastHour,
		"cache": gin.H{
			"size":     s.cache.Len(),
			"capacity": s.cache.Capacity(),
		},
		"pool": gin.H{
			"active":       poolStats.Active,
			"idle":         poolStats.Idle,
			"max_conns":    poolStats.MaxConns,
			"temp_created": poolStats.TempCreated,
		},
		"analytics": gin.H{
			"cache_served":   aggStats.CacheServed,
			"storage_served": aggStats.StorageServed,
		},
		"ingest": gin.H{
			"received":    ingestStats.Received,
			"stored":      ingestStats.Stored,
			"failed":      ingestStats.Failed,
			"dropped":     ingestStats.Dropped,
			"queue_depth": s.ingest.QueueDepth(),
		},
	}

	if s.dist != nil {
		q := s.dist.Snapshot()
		status["temperature_distribution"] = gin.H{
			"count": q.Count,
			"p50":   q.P50,
			"p90":   q.P90,
			"p95":   q.P95,
			"p99":   q.P99,
		}
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) handleDeleteReadings(c *gin.Context) {
	deleted, err := s.store.DeleteAll(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.cache.Clear()
	if s.dist != nil {
		s.dist.Reset()
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "all readings deleted",
		"deleted": deleted,
	})
}

type simulateRequest struct {
	Sensors           int `json:"sensors"`
	ReadingsPerSensor int `json:"readings_per_sensor"`
}

func (s *Server) handleSimulate(c *gin.Context) {
	req := simulateRequest{Sensors: 3, ReadingsPerSensor: 60}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}
	if req.Sensors < 1 || req.Sensors > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sensors must be between 1 and 100"})
		return
	}
	if req.ReadingsPerSensor < 1 || req.ReadingsPerSensor > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "readings_per_sensor must be between 1 and 1000"})
		return
	}

	written, err := s.ingest.Simulate(c.Request.Context(), req.Sensors, req.ReadingsPerSensor)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "simulation complete",
		"sensors": req.Sensors,
		"written": written,
	})
}

// writeError maps a domain error to its HTTP status.
func (s *Server) writeError(c *gin.Context, err error) {
	status := errors.ErrorToStatus(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(c.Request.Context()).Error("request failed",
			"path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// =============================================================================
// Lifecycle
// =============================================================================

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.Listen,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.log.Info("listening", "address", s.config.Listen)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("forced shutdown", "error", err)
		return err
	}

	s.log.Info("server stopped")
	return nil
}
