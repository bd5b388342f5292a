// Package storage provides durable persistence for temperature readings.
//
// DuckDB is the backing store; it is the source of truth for every
// reading. All access goes through the connection pool - no caller opens
// a direct connection. Concurrency control between independent
// connections is delegated to the engine, not reimplemented here.
package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/xtxerr/weatherd/internal/errors"
	"github.com/xtxerr/weatherd/internal/logging"
	"github.com/xtxerr/weatherd/internal/pool"
	"github.com/xtxerr/weatherd/internal/reading"
)

// Store provides database operations over pooled connections.
//
// Store is safe for concurrent use; each operation holds one connection
// for its duration and releases it before returning.
type Store struct {
	pool *pool.Pool
	log  *slog.Logger
}

// WindowQuery scopes an aggregate query to a closed time interval,
// optionally filtered to a single sensor.
type WindowQuery struct {
	SensorID string // empty means all sensors
	Start    time.Time
	End      time.Time
}

// New creates a Store on top of an existing pool.
func New(p *pool.Pool) *Store {
	return &Store{
		pool: p,
		log:  logging.Component("storage"),
	}
}

// Init creates the readings schema if it does not exist: the id sequence,
// the readings table, and the indexes backing time-window queries.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE SEQUENCE IF NOT EXISTS readings_id_seq`,
		`CREATE TABLE IF NOT EXISTS readings (
			id          BIGINT PRIMARY KEY DEFAULT nextval('readings_id_seq'),
			ts          TIMESTAMP NOT NULL,
			temperature DOUBLE NOT NULL,
			sensor_id   VARCHAR NOT NULL,
			created_at  TIMESTAMP DEFAULT current_timestamp
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings (ts)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_sensor_ts ON readings (sensor_id, ts)`,
	}

	return s.pool.Do(ctx, func(conn *sql.Conn) error {
		for _, stmt := range stmts {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return errors.NewStorage("init schema", err)
			}
		}
		s.log.Info("schema initialized")
		return nil
	})
}

// transact runs fn inside a transaction on a pooled connection. If fn
// returns an error the transaction is rolled back and the error
// propagates; otherwise the transaction commits.
func (s *Store) transact(ctx context.Context, fn func(*sql.Tx) error) error {
	return s.pool.Do(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return errors.NewStorage("begin transaction", err)
		}

		defer func() {
			if p := recover(); p != nil {
				tx.Rollback()
				panic(p)
			}
		}()

		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return errors.Wrapf(err, "rollback failed: %v", rbErr)
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			return errors.NewStorage("commit transaction", err)
		}
		return nil
	})
}

// InsertReading durably writes a reading and returns the generated id.
// The write is transactional: on any failure nothing is persisted and the
// error propagates to the caller.
func (s *Store) InsertReading(ctx context.Context, r reading.Reading) (int64, error) {
	var id int64

	err := s.transact(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`INSERT INTO readings (ts, temperature, sensor_id)
			 VALUES (?, ?, ?)
			 RETURNING id`,
			r.Timestamp.UTC(), r.Temperature, r.SensorID,
		)
		if err := row.Scan(&id); err != nil {
			return errors.NewStorage("insert reading", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// WindowAggregate computes AVG and COUNT over readings whose timestamp
// lies in [q.Start, q.End], both ends inclusive. A zero count returns
// ErrNoData; storage failures are reported as such, never as no-data.
func (s *Store) WindowAggregate(ctx context.Context, q WindowQuery) (avg float64, count int64, err error) {
	query := `SELECT AVG(temperature), COUNT(*) FROM readings WHERE ts >= ? AND ts <= ?`
	args := []any{q.Start.UTC(), q.End.UTC()}
	if q.SensorID != "" {
		query += ` AND sensor_id = ?`
		args = append(args, q.SensorID)
	}

	err = s.pool.Do(ctx, func(conn *sql.Conn) error {
		var nullAvg sql.NullFloat64
		if err := conn.QueryRowContext(ctx, query, args...).Scan(&nullAvg, &count); err != nil {
			return errors.NewStorage("window aggregate", err)
		}
		if count == 0 || !nullAvg.Valid {
			return errors.ErrNoData
		}
		avg = nullAvg.Float64
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return avg, count, nil
}

// RecentReadings returns up to limit readings ordered newest-first by
// timestamp. This is the authoritative (storage-side) recent view, as
// opposed to the cache's recency-ordered one.
func (s *Store) RecentReadings(ctx context.Context, limit int) ([]reading.Reading, error) {
	if limit <= 0 {
		return nil, errors.ErrInvalidLimit
	}

	var out []reading.Reading
	err := s.pool.Do(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT id, ts, temperature, sensor_id
			 FROM readings
			 ORDER BY ts DESC
			 LIMIT ?`, limit)
		if err != nil {
			return errors.NewStorage("recent readings", err)
		}
		defer rows.Close()

		out, err = scanReadings(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountSince returns the number of readings with timestamp >= since.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.pool.Do(ctx, func(conn *sql.Conn) error {
		if err := conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM readings WHERE ts >= ?`, since.UTC(),
		).Scan(&n); err != nil {
			return errors.NewStorage("count since", err)
		}
		return nil
	})
	return n, err
}

// TotalCount returns the total number of stored readings.
func (s *Store) TotalCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.Do(ctx, func(conn *sql.Conn) error {
		if err := conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM readings`,
		).Scan(&n); err != nil {
			return errors.NewStorage("total count", err)
		}
		return nil
	})
	return n, err
}

// FetchOlderThan returns readings with timestamp < cutoff, oldest first,
// up to limit rows. Used by the archiver to page through aged data.
func (s *Store) FetchOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]reading.Reading, error) {
	var out []reading.Reading
	err := s.pool.Do(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT id, ts, temperature, sensor_id
			 FROM readings
			 WHERE ts < ?
			 ORDER BY ts
			 LIMIT ?`, cutoff.UTC(), limit)
		if err != nil {
			return errors.NewStorage("fetch older than", err)
		}
		defer rows.Close()

		out, err = scanReadings(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOlderThan removes readings with timestamp < cutoff and returns
// the number of rows deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.transact(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM readings WHERE ts < ?`, cutoff.UTC())
		if err != nil {
			return errors.NewStorage("delete older than", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// DeleteAll removes every reading and returns the number deleted.
// Testing and reset aid; the cache must be cleared by the caller.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.transact(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM readings`)
		if err != nil {
			return errors.NewStorage("delete all", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Health verifies the store is reachable through the pool.
func (s *Store) Health(ctx context.Context) error {
	return s.pool.Do(ctx, func(conn *sql.Conn) error {
		var one int
		if err := conn.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
			return errors.NewStorage("health check", err)
		}
		return nil
	})
}

// scanReadings scans rows into a Reading slice.
func scanReadings(rows *sql.Rows) ([]reading.Reading, error) {
	var out []reading.Reading
	for rows.Next() {
		var r reading.Reading
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Temperature, &r.SensorID); err != nil {
			return nil, errors.NewStorage("scan reading", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("iterate readings", err)
	}
	return out, nil
}
