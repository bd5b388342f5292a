package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xtxerr/weatherd/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Listen != "0.0.0.0:8000" {
		t.Errorf("unexpected default listen: %s", cfg.Server.Listen)
	}
	if cfg.Cache.Capacity != 100 {
		t.Errorf("unexpected default cache capacity: %d", cfg.Cache.Capacity)
	}
	if cfg.Analytics.MinCacheSamples != 30 {
		t.Errorf("unexpected default min_cache_samples: %d", cfg.Analytics.MinCacheSamples)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":9000"
storage:
  path: /tmp/test.db
  max_conns: 10
cache:
  capacity: 500
analytics:
  window: 30m
ingest:
  workers: 8
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Listen != ":9000" {
		t.Errorf("listen = %s", cfg.Server.Listen)
	}
	if cfg.Storage.Path != "/tmp/test.db" {
		t.Errorf("storage path = %s", cfg.Storage.Path)
	}
	if cfg.Storage.MaxConns != 10 {
		t.Errorf("max_conns = %d", cfg.Storage.MaxConns)
	}
	if cfg.Cache.Capacity != 500 {
		t.Errorf("cache capacity = %d", cfg.Cache.Capacity)
	}
	if cfg.Analytics.Window.Duration() != 30*time.Minute {
		t.Errorf("window = %v", cfg.Analytics.Window.Duration())
	}
	if cfg.Ingest.Workers != 8 {
		t.Errorf("workers = %d", cfg.Ingest.Workers)
	}

	// Untouched sections keep their defaults.
	if cfg.Storage.MinConns != 2 {
		t.Errorf("min_conns should keep default, got %d", cfg.Storage.MinConns)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("WEATHERD_TEST_DB", "/var/lib/weather.db")
	path := writeConfig(t, `
storage:
  path: ${WEATHERD_TEST_DB}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "/var/lib/weather.db" {
		t.Errorf("expected env expansion, got %s", cfg.Storage.Path)
	}
}

func TestLoad_DurationAsSeconds(t *testing.T) {
	path := writeConfig(t, `
storage:
  conn_timeout: 45
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.ConnTimeout.Duration() != 45*time.Second {
		t.Errorf("conn_timeout = %v", cfg.Storage.ConnTimeout.Duration())
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Server.Listen = "" }},
		{"min above max", func(c *Config) { c.Storage.MinConns = 10; c.Storage.MaxConns = 5 }},
		{"zero cache capacity", func(c *Config) { c.Cache.Capacity = 0 }},
		{"zero window", func(c *Config) { c.Analytics.Window = 0 }},
		{"accuracy out of range", func(c *Config) { c.Analytics.SketchAccuracy = 1.5 }},
		{"zero workers", func(c *Config) { c.Ingest.Workers = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"archive enabled without dir", func(c *Config) { c.Archive.Enabled = true; c.Archive.Dir = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			if !errors.Is(err, errors.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
