package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fxstreaks/internal/config"
	"fxstreaks/internal/streaks"
)

var (
	// ErrDataSource wraps every failure to reach or query the rate store.
	ErrDataSource = errors.New("storage: data source error")
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = fmt.Errorf("%w: pool not configured", ErrDataSource)
)

// RateStore reads and writes the exchange rate series.
type RateStore interface {
	// QueryRankings runs the streak ranking inside the store when it can
	// rank exactly, otherwise over the listed series.
	QueryRankings(ctx context.Context, asOf time.Time, topN int) ([]streaks.RankedMetric, error)
	// ListObservations returns the raw series up to and including asOf.
	ListObservations(ctx context.Context, asOf time.Time) ([]streaks.Observation, error)
	UpsertObservations(ctx context.Context, obs []streaks.Observation) (int, error)
	Close()
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// NewPool configures a PostgreSQL connection pool from runtime settings. dsn
// overrides cfg.DSN when non-empty.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		dsn = cfg.DSN
	}
	if dsn == "" {
		return nil, fmt.Errorf("%w: database.dsn is required", ErrDataSource)
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse database dsn: %w", ErrDataSource, err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: create pgx pool: %w", ErrDataSource, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping database: %w", ErrDataSource, err)
	}

	return pool, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func asOfDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
