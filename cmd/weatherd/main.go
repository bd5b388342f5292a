// weatherd is the sensor temperature platform daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xtxerr/weatherd/internal/analytics"
	"github.com/xtxerr/weatherd/internal/archive"
	"github.com/xtxerr/weatherd/internal/cache"
	"github.com/xtxerr/weatherd/internal/ingest"
	"github.com/xtxerr/weatherd/internal/loader"
	"github.com/xtxerr/weatherd/internal/logging"
	"github.com/xtxerr/weatherd/internal/pool"
	"github.com/xtxerr/weatherd/internal/server"
	"github.com/xtxerr/weatherd/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	listen := flag.String("listen", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "database path (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	logJSON := flag.Bool("log-json", false, "JSON log output")
	simulate := flag.Bool("simulate", false, "seed synthetic readings on startup")
	flag.Parse()

	// Load config
	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// CLI overrides
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logging.Init(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.JSON || *logJSON)
	log := logging.Component("main")
	log.Info("weatherd starting", "version", Version)

	// =========================================================================
	// Storage (DuckDB behind the connection pool)
	// =========================================================================

	p, err := pool.New(pool.Config{
		DSN:         cfg.Storage.Path,
		MinConns:    cfg.Storage.MinConns,
		MaxConns:    cfg.Storage.MaxConns,
		ConnTimeout: cfg.Storage.ConnTimeout.Duration(),
	})
	if err != nil {
		log.Error("open storage", "error", err)
		os.Exit(1)
	}

	store := storage.New(p)
	if err := store.Init(context.Background()); err != nil {
		log.Error("initialize schema", "error", err)
		p.CloseAll()
		os.Exit(1)
	}
	log.Info("storage ready", "path", cfg.Storage.Path,
		"min_conns", cfg.Storage.MinConns, "max_conns", cfg.Storage.MaxConns)

	// =========================================================================
	// Cache, Analytics, Ingestion
	// =========================================================================

	c := cache.New(cfg.Cache.Capacity)
	dist := analytics.NewDistribution(cfg.Analytics.SketchAccuracy)
	agg := analytics.New(c, store, analytics.Config{
		MinCacheSamples: cfg.Analytics.MinCacheSamples,
		Window:          cfg.Analytics.Window.Duration(),
	})

	svc := ingest.New(store, c, dist, ingest.Config{
		Workers:   cfg.Ingest.Workers,
		QueueSize: cfg.Ingest.QueueSize,
	})
	if err := svc.Start(); err != nil {
		log.Error("start ingestion", "error", err)
		p.CloseAll()
		os.Exit(1)
	}

	if *simulate {
		written, err := svc.Simulate(context.Background(), 3, 60)
		if err != nil {
			log.Warn("simulation failed", "error", err)
		} else {
			log.Info("seeded synthetic readings", "written", written)
		}
	}

	// =========================================================================
	// Archive (optional Parquet cold storage)
	// =========================================================================

	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		archiver = archive.New(store, archive.Config{
			Dir:         cfg.Archive.Dir,
			Interval:    cfg.Archive.Interval.Duration(),
			Retention:   cfg.Archive.Retention.Duration(),
			Compression: cfg.Archive.Compression,
		})
		if err := archiver.Start(); err != nil {
			log.Error("start archiver", "error", err)
			os.Exit(1)
		}
	}

	// =========================================================================
	// HTTP Server and Graceful Shutdown
	// =========================================================================

	srv := server.New(server.Config{
		Listen:          cfg.Server.Listen,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second,
	}, svc, store, c, agg, dist, p)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = srv.Run(ctx)

	// Shutdown order: listener is already down, so no new submissions.
	// Drain the ingestion queue, stop the archiver, then close storage.
	log.Info("shutting down")
	svc.Stop()
	if archiver != nil {
		archiver.Stop()
	}
	p.CloseAll()

	if err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("weatherd stopped")
}
