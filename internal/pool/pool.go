// Package pool provides a bounded pool of dedicated DuckDB connections.
//
// database/sql ships its own pooling, but it hides the accounting this
// system needs: an eagerly-created minimum, a hard pooled maximum, and a
// never-block overflow policy when the maximum is reached. The pool
// therefore owns connection lifecycle itself: the underlying *sql.DB is
// used purely as a connection factory (idle pooling in database/sql is
// disabled so closing a handle really closes it).
//
// Acquisition order:
//  1. pop an idle connection if one is available
//  2. create a new tracked connection if active < max
//  3. create a temporary untracked connection as a last resort
//
// Step 3 trades pool-size guarantees for availability: a caller is never
// blocked indefinitely, but sustained overload can create any number of
// temporary connections. Temporary connections are closed on release,
// never pooled.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/weatherd/internal/errors"
	"github.com/xtxerr/weatherd/internal/logging"
)

// Config holds pool configuration options.
type Config struct {
	// DSN is the DuckDB database path. Empty means in-memory.
	DSN string

	// MinConns connections are created eagerly at startup.
	MinConns int

	// MaxConns is the maximum number of tracked connections.
	MaxConns int

	// ConnTimeout bounds the storage handshake when creating a connection.
	ConnTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinConns:    2,
		MaxConns:    5,
		ConnTimeout: 30 * time.Second,
	}
}

// Pool manages a bounded set of reusable storage connections.
//
// Pool is safe for concurrent use. The mutex guards only the idle list and
// counters; connection creation and queries run outside it so slow I/O
// never blocks other acquirers' bookkeeping.
type Pool struct {
	mu     sync.Mutex
	idle   []*sql.Conn
	active int
	closed bool

	db     *sql.DB
	config Config
	log    *slog.Logger

	stats Stats
}

// Stats holds pool counters. Active and Idle reflect the current state;
// the remaining fields are cumulative.
type Stats struct {
	Active      int
	Idle        int
	MaxConns    int
	Acquires    int64
	TempCreated int64
	Closed      int64
}

// New creates a pool and eagerly opens MinConns connections.
func New(cfg Config) (*Pool, error) {
	if cfg.MaxConns < 1 {
		cfg.MaxConns = 1
	}
	if cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = cfg.MaxConns
	}
	if cfg.ConnTimeout <= 0 {
		cfg.ConnTimeout = 30 * time.Second
	}

	db, err := sql.Open("duckdb", cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	// The pool owns lifecycle: no driver-side idle retention, no cap on
	// simultaneous handles (the temporary-connection fallback needs that).
	db.SetMaxIdleConns(0)
	db.SetConnMaxLifetime(0)

	p := &Pool{
		db:     db,
		config: cfg,
		log:    logging.Component("pool"),
	}

	for i := 0; i < cfg.MinConns; i++ {
		conn, err := p.createConn(context.Background())
		if err != nil {
			p.CloseAll()
			return nil, errors.Wrapf(err, "create initial connection %d", i)
		}
		p.idle = append(p.idle, conn)
		p.active++
	}

	p.log.Debug("pool initialized", "min", cfg.MinConns, "max", cfg.MaxConns)
	return p, nil
}

// createConn opens a dedicated connection with a bounded handshake.
func (p *Pool) createConn(ctx context.Context) (*sql.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.ConnTimeout)
	defer cancel()

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, errors.ErrConnectionFailed)
	}
	return conn, nil
}

// Acquire returns a connection for the exclusive use of the caller.
// Release the returned Lease when the unit of work is done.
//
// Acquire never blocks waiting for another caller to release: when the
// pool is exhausted it opens a temporary connection instead. Creation
// failures are returned, never retried silently.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, errors.ErrPoolClosed
	}

	p.stats.Acquires++

	// (a) reuse an idle connection
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return &Lease{pool: p, conn: conn, pooled: true}, nil
	}

	// (b) create a tracked connection if under the cap. The slot is
	// reserved before unlocking so concurrent acquirers cannot overshoot
	// the cap; on failure the reservation is rolled back.
	if p.active < p.config.MaxConns {
		p.active++
		p.mu.Unlock()

		conn, err := p.createConn(ctx)
		if err != nil {
			p.mu.Lock()
			p.active--
			p.mu.Unlock()
			return nil, err
		}
		return &Lease{pool: p, conn: conn, pooled: true}, nil
	}

	// (c) pool exhausted: temporary untracked connection
	p.mu.Unlock()

	p.log.Warn("pool exhausted, creating temporary connection",
		"max_conns", p.config.MaxConns)

	conn, err := p.createConn(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.stats.TempCreated++
	p.mu.Unlock()

	return &Lease{pool: p, conn: conn, pooled: false}, nil
}

// Do acquires a connection, runs fn with it, and releases it. Errors from
// fn are propagated unchanged.
func (p *Pool) Do(ctx context.Context, fn func(*sql.Conn) error) error {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(lease.Conn())
}

// release returns a pooled connection. If the idle list has room the
// connection goes back; otherwise it is closed and the active count drops.
func (p *Pool) release(conn *sql.Conn, pooled bool) {
	if !pooled {
		// Temporary connections are never pooled.
		conn.Close()
		p.mu.Lock()
		p.stats.Closed++
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		return
	}
	if len(p.idle) < p.config.MaxConns {
		p.idle = append(p.idle, conn)
		p.mu.Unlock()
		return
	}
	p.active--
	p.stats.Closed++
	p.mu.Unlock()
	conn.Close()
}

// CloseAll closes every idle connection, clears the idle list, and resets
// the active count to zero. Intended for shutdown only; calling it while
// traffic is active is undefined. After CloseAll, Acquire fails with
// ErrPoolClosed.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.active = 0
	p.closed = true
	p.mu.Unlock()

	for _, conn := range idle {
		conn.Close()
	}
	p.db.Close()

	p.log.Debug("pool closed", "idle_closed", len(idle))
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	s.Active = p.active
	s.Idle = len(p.idle)
	s.MaxConns = p.config.MaxConns
	return s
}

// Lease is a scoped handle to a connection. The caller owns the
// connection exclusively until Release.
type Lease struct {
	pool     *Pool
	conn     *sql.Conn
	pooled   bool
	released bool
	mu       sync.Mutex
}

// Conn returns the underlying connection.
func (l *Lease) Conn() *sql.Conn {
	return l.conn
}

// Release returns the connection to the pool (or closes it, for temporary
// connections). Release is idempotent.
func (l *Lease) Release() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	l.mu.Unlock()

	l.pool.release(l.conn, l.pooled)
}
