package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPool provides the pieces of worker infrastructure that need a raw
// pgx connection pool rather than the ORM: advisory locks so only one
// replica drains the outbox, scheduled-job bookkeeping, and pool stats for
// metrics.
type PostgresPool struct {
	pool *pgxpool.Pool
}

func OpenPostgresPool(ctx context.Context, dsn string) (*PostgresPool, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/offercast?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &PostgresPool{pool: pool}, nil
}

func (p *PostgresPool) Close() {
	p.pool.Close()
}

func (p *PostgresPool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// AcquireAdvisoryLock attempts a non-blocking session advisory lock.
// Returns false when another node already holds it.
func (p *PostgresPool) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var got bool
	err := p.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&got)
	return got, err
}

func (p *PostgresPool) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var released bool
	err := p.pool.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key).Scan(&released)
	return released, err
}

// UpdateScheduledJob records the outcome of a worker run.
func (p *PostgresPool) UpdateScheduledJob(ctx context.Context, name string, startedAt time.Time, dur time.Duration, success bool, errMsg string) error {
	successInt := 0
	if success {
		successInt = 1
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO scheduled_jobs (name, last_run_at, last_duration_ms, last_success, last_error)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (name) DO UPDATE SET
			last_run_at=EXCLUDED.last_run_at,
			last_duration_ms=EXCLUDED.last_duration_ms,
			last_success=EXCLUDED.last_success,
			last_error=EXCLUDED.last_error
	`, name, startedAt, dur.Milliseconds(), successInt, errMsg)
	return err
}

// Stat exposes pool statistics for the DB metrics gauges.
func (p *PostgresPool) Stat() (total, idle, acquired float64, acquires uint64) {
	st := p.pool.Stat()
	return float64(st.TotalConns()), float64(st.IdleConns()), float64(st.AcquiredConns()), uint64(st.AcquireCount())
}
