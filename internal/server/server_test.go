package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/weatherd/internal/analytics"
	"github.com/xtxerr/weatherd/internal/cache"
	"github.com/xtxerr/weatherd/internal/ingest"
	"github.com/xtxerr/weatherd/internal/logging"
	"github.com/xtxerr/weatherd/internal/pool"
	"github.com/xtxerr/weatherd/internal/reading"
	"github.com/xtxerr/weatherd/internal/storage"
)

type testEnv struct {
	server *Server
	store  *storage.Store
	cache  *cache.Cache
	ingest *ingest.Service
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	p, err := pool.New(pool.Config{
		DSN:         "",
		MinConns:    1,
		MaxConns:    3,
		ConnTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}
	t.Cleanup(p.CloseAll)

	store := storage.New(p)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	c := cache.New(100)
	dist := analytics.NewDistribution(0.01)
	agg := analytics.New(c, store, analytics.DefaultConfig())

	svc := ingest.New(store, c, dist, ingest.DefaultConfig())
	if err := svc.Start(); err != nil {
		t.Fatalf("ingest start: %v", err)
	}
	t.Cleanup(svc.Stop)

	srv := New(DefaultConfig(), svc, store, c, agg, dist, p)
	return &testEnv{server: srv, store: store, cache: c, ingest: svc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return m
}

func seedStorage(t *testing.T, store *storage.Store, n int, temp float64) {
	t.Helper()
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		_, err := store.InsertReading(context.Background(), reading.Reading{
			SensorID:    "sensor_01",
			Temperature: temp,
			Timestamp:   now.Add(-time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}
}

func TestServer_Health(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestServer_SubmitReading(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/readings", map[string]any{
		"sensor_id":   "sensor_01",
		"temperature": 21.5,
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode(t, w)
	if resp["sensor_id"] != "sensor_01" {
		t.Errorf("expected echoed sensor_id, got %v", resp["sensor_id"])
	}
}

func TestServer_SubmitReadingValidation(t *testing.T) {
	env := newTestServer(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing sensor", map[string]any{"temperature": 20.0}},
		{"too hot", map[string]any{"sensor_id": "s", "temperature": 99.0}},
		{"too cold", map[string]any{"sensor_id": "s", "temperature": -80.0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/readings", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestServer_RecentReadings(t *testing.T) {
	env := newTestServer(t)
	seedStorage(t, env.store, 15, 20)

	w := env.do(t, http.MethodGet, "/readings/recent", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["count"].(float64) != 10 {
		t.Errorf("expected default limit of 10, got %v", resp["count"])
	}

	w = env.do(t, http.MethodGet, "/readings/recent?limit=5", nil)
	resp = decode(t, w)
	if resp["count"].(float64) != 5 {
		t.Errorf("expected 5, got %v", resp["count"])
	}

	// Limit is capped, not rejected.
	w = env.do(t, http.MethodGet, "/readings/recent?limit=5000", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for oversized limit, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/readings/recent?limit=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestServer_AverageHourNoData(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodGet, "/analytics/average-hour", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 with no data, got %d: %s", w.Code, w.Body.String())
	}
}

func TestServer_AverageHourFromStorage(t *testing.T) {
	env := newTestServer(t)
	seedStorage(t, env.store, 5, 22)

	w := env.do(t, http.MethodGet, "/analytics/average-hour", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode(t, w)
	if resp["average_temperature"].(float64) != 22 {
		t.Errorf("expected average 22, got %v", resp["average_temperature"])
	}
	if resp["data_source"] != "storage" {
		t.Errorf("expected storage source, got %v", resp["data_source"])
	}
}

func TestServer_Status(t *testing.T) {
	env := newTestServer(t)
	seedStorage(t, env.store, 3, 20)

	w := env.do(t, http.MethodGet, "/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode(t, w)
	if resp["total_readings"].(float64) != 3 {
		t.Errorf("expected 3 total readings, got %v", resp["total_readings"])
	}
	if _, ok := resp["cache"]; !ok {
		t.Error("expected cache section")
	}
	if _, ok := resp["pool"]; !ok {
		t.Error("expected pool section")
	}
}

func TestServer_DeleteReadings(t *testing.T) {
	env := newTestServer(t)
	seedStorage(t, env.store, 4, 20)
	env.cache.Put("k", reading.Reading{SensorID: "s", Temperature: 20})

	w := env.do(t, http.MethodDelete, "/readings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode(t, w)
	if resp["deleted"].(float64) != 4 {
		t.Errorf("expected 4 deleted, got %v", resp["deleted"])
	}
	if env.cache.Len() != 0 {
		t.Errorf("expected cache cleared, got %d entries", env.cache.Len())
	}
}

func TestServer_Simulate(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/simulate", map[string]any{
		"sensors":             2,
		"readings_per_sensor": 5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode(t, w)
	if resp["written"].(float64) != 10 {
		t.Errorf("expected 10 written, got %v", resp["written"])
	}

	total, err := env.store.TotalCount(context.Background())
	if err != nil {
		t.Fatalf("TotalCount: %v", err)
	}
	if total != 10 {
		t.Errorf("expected 10 rows, got %d", total)
	}
}

func TestServer_SimulateRejectsOutOfRange(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/simulate", map[string]any{
		"sensors":             500,
		"readings_per_sensor": 5,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestServer_RunShutsDownOnCancel(t *testing.T) {
	env := newTestServer(t)
	env.server.config.Listen = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- env.server.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServer_AverageHourPerSensor(t *testing.T) {
	env := newTestServer(t)
	now := time.Now().UTC()

	for i, tc := range []struct {
		sensor string
		temp   float64
	}{
		{"sensor_01", 20}, {"sensor_01", 22}, {"sensor_02", 30},
	} {
		_, err := env.store.InsertReading(context.Background(), reading.Reading{
			SensorID:    tc.sensor,
			Temperature: tc.temp,
			Timestamp:   now.Add(-time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}

	w := env.do(t, http.MethodGet, "/analytics/average-hour?sensor_id=sensor_01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if got := resp["average_temperature"].(float64); got != 21 {
		t.Errorf("expected 21, got %v", got)
	}
	if got := resp["readings_count"].(float64); got != 2 {
		t.Errorf("expected 2 readings, got %v", got)
	}
}

func TestServer_RequestLogCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logging.InitWithHandler(slog.NewJSONHandler(&buf, nil))
	t.Cleanup(func() { logging.Init(slog.LevelInfo, false) })

	env := newTestServer(t)

	env.do(t, http.MethodGet, "/health", nil)
	env.do(t, http.MethodGet, "/health", nil)

	out := buf.String()
	if !strings.Contains(out, `"request_id":1`) {
		t.Errorf("first request log missing request_id=1: %q", out)
	}
	if !strings.Contains(out, `"request_id":2`) {
		t.Errorf("second request log missing request_id=2: %q", out)
	}
}
