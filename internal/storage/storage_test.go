package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/xtxerr/weatherd/internal/errors"
	"github.com/xtxerr/weatherd/internal/pool"
	"github.com/xtxerr/weatherd/internal/reading"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	p, err := pool.New(pool.Config{
		DSN:         "", // in-memory
		MinConns:    1,
		MaxConns:    3,
		ConnTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}
	t.Cleanup(p.CloseAll)

	s := New(p)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func TestStore_InsertReading(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := reading.Reading{
		SensorID:    "sensor_01",
		Temperature: 21.5,
		Timestamp:   time.Now().UTC(),
	}

	id, err := s.InsertReading(ctx, r)
	if err != nil {
		t.Fatalf("InsertReading: %v", err)
	}
	if id <= 0 {
		t.Errorf("expected positive generated id, got %d", id)
	}

	id2, err := s.InsertReading(ctx, r)
	if err != nil {
		t.Fatalf("InsertReading #2: %v", err)
	}
	if id2 <= id {
		t.Errorf("expected increasing ids, got %d then %d", id, id2)
	}
}

func TestStore_WindowAggregate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	temps := []float64{20.0, 21.0, 22.0, 23.0}
	for i, temp := range temps {
		_, err := s.InsertReading(ctx, reading.Reading{
			SensorID:    "sensor_01",
			Temperature: temp,
			Timestamp:   now.Add(-time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}

	// One reading outside the window.
	_, err := s.InsertReading(ctx, reading.Reading{
		SensorID:    "sensor_01",
		Temperature: 99.0,
		Timestamp:   now.Add(-2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("InsertReading: %v", err)
	}

	avg, count, err := s.WindowAggregate(ctx, WindowQuery{
		Start: now.Add(-time.Hour),
		End:   now,
	})
	if err != nil {
		t.Fatalf("WindowAggregate: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4 in-window readings, got %d", count)
	}
	if avg < 21.49 || avg > 21.51 {
		t.Errorf("expected avg 21.5, got %v", avg)
	}
}

func TestStore_WindowAggregateSensorFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		sensor := fmt.Sprintf("sensor_%02d", i%2+1)
		_, err := s.InsertReading(ctx, reading.Reading{
			SensorID:    sensor,
			Temperature: float64(10 * (i + 1)),
			Timestamp:   now.Add(-time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}

	_, count, err := s.WindowAggregate(ctx, WindowQuery{
		SensorID: "sensor_01",
		Start:    now.Add(-time.Hour),
		End:      now,
	})
	if err != nil {
		t.Fatalf("WindowAggregate: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 readings for sensor_01, got %d", count)
	}
}

func TestStore_WindowAggregateNoData(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	_, _, err := s.WindowAggregate(context.Background(), WindowQuery{
		Start: now.Add(-time.Hour),
		End:   now,
	})
	if !errors.Is(err, errors.ErrNoData) {
		t.Errorf("expected ErrNoData on empty store, got %v", err)
	}
}

func TestStore_RecentReadings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_, err := s.InsertReading(ctx, reading.Reading{
			SensorID:    "sensor_01",
			Temperature: float64(i),
			Timestamp:   now.Add(-time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}

	recent, err := s.RecentReadings(ctx, 3)
	if err != nil {
		t.Fatalf("RecentReadings: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(recent))
	}

	// Newest first by timestamp.
	for i := 1; i < len(recent); i++ {
		if recent[i].Timestamp.After(recent[i-1].Timestamp) {
			t.Errorf("readings not ordered newest-first at index %d", i)
		}
	}

	if _, err := s.RecentReadings(ctx, 0); !errors.Is(err, errors.ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit for limit 0, got %v", err)
	}
}

func TestStore_Counts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		_, err := s.InsertReading(ctx, reading.Reading{
			SensorID:    "s",
			Temperature: 20,
			Timestamp:   now.Add(-time.Duration(i) * 40 * time.Minute),
		})
		if err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}

	total, err := s.TotalCount(ctx)
	if err != nil {
		t.Fatalf("TotalCount: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}

	recent, err := s.CountSince(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if recent != 2 {
		t.Errorf("expected 2 readings in last hour, got %d", recent)
	}
}

func TestStore_DeleteAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := s.InsertReading(ctx, reading.Reading{
			SensorID:    "s",
			Temperature: 20,
			Timestamp:   time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}

	deleted, err := s.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if deleted != 4 {
		t.Errorf("expected 4 deleted, got %d", deleted)
	}

	total, err := s.TotalCount(ctx)
	if err != nil {
		t.Fatalf("TotalCount: %v", err)
	}
	if total != 0 {
		t.Errorf("expected empty store, got %d", total)
	}
}

func TestStore_ArchiveQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Two old readings, one fresh.
	for _, age := range []time.Duration{48 * time.Hour, 30 * time.Hour, time.Minute} {
		_, err := s.InsertReading(ctx, reading.Reading{
			SensorID:    "s",
			Temperature: 20,
			Timestamp:   now.Add(-age),
		})
		if err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}

	cutoff := now.Add(-24 * time.Hour)

	old, err := s.FetchOlderThan(ctx, cutoff, 100)
	if err != nil {
		t.Fatalf("FetchOlderThan: %v", err)
	}
	if len(old) != 2 {
		t.Fatalf("expected 2 aged readings, got %d", len(old))
	}
	if old[0].Timestamp.After(old[1].Timestamp) {
		t.Error("aged readings not ordered oldest-first")
	}

	deleted, err := s.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}

	total, _ := s.TotalCount(ctx)
	if total != 1 {
		t.Errorf("expected 1 remaining, got %d", total)
	}
}

func TestStore_Health(t *testing.T) {
	s := newTestStore(t)
	if err := s.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}
