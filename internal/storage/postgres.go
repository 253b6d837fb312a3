package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"fxstreaks/internal/streaks"
)

// PostgresStore serves the rate series from PostgreSQL.
type PostgresStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresStore wires a pgx pool into a store. A positive timeout bounds
// every query.
func NewPostgresStore(pool *pgxpool.Pool, timeout time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, timeout: timeout}
}

// Pool exposes the underlying pool for migrations.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// QueryRankings implements RateStore.
func (s *PostgresStore) QueryRankings(ctx context.Context, asOf time.Time, topN int) ([]streaks.RankedMetric, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := pool.Query(ctx, rankingsPostgresSQL, asOfDate(asOf), topN)
	if err != nil {
		return nil, fmt.Errorf("%w: query rankings: %w", ErrDataSource, err)
	}
	defer rows.Close()

	ranked := make([]streaks.RankedMetric, 0, topN)
	for rows.Next() {
		var (
			metric            streaks.RankedMetric
			posRank, percRank int64
		)
		if err := rows.Scan(
			&metric.Instrument,
			&metric.AvgConsPosDays,
			&metric.AvgConsPercChange,
			&posRank,
			&percRank,
		); err != nil {
			return nil, fmt.Errorf("%w: scan ranking: %w", ErrDataSource, err)
		}
		metric.AvgConsPosDaysRank = int(posRank)
		metric.AvgConsPercChangeRank = int(percRank)
		ranked = append(ranked, metric)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query rankings: %w", ErrDataSource, err)
	}
	return ranked, nil
}

// ListObservations implements RateStore.
func (s *PostgresStore) ListObservations(ctx context.Context, asOf time.Time) ([]streaks.Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := pool.Query(ctx, listObservationsPostgresSQL, asOfDate(asOf))
	if err != nil {
		return nil, fmt.Errorf("%w: list observations: %w", ErrDataSource, err)
	}
	defer rows.Close()

	obs := make([]streaks.Observation, 0)
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list observations: %w", ErrDataSource, err)
	}
	return obs, nil
}

func scanObservation(rows pgx.Rows) (streaks.Observation, error) {
	var (
		symbol  string
		date    time.Time
		rateStr string
	)
	if err := rows.Scan(&symbol, &date, &rateStr); err != nil {
		return streaks.Observation{}, fmt.Errorf("%w: scan observation: %w", ErrDataSource, err)
	}
	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return streaks.Observation{}, fmt.Errorf("%w: parse exchange rate %q: %w", ErrDataSource, rateStr, err)
	}
	return streaks.Observation{Instrument: symbol, Date: date, Rate: rate}, nil
}

// UpsertObservations inserts or updates rates in one transaction. On error
// nothing is stored and the count is zero.
func (s *PostgresStore) UpsertObservations(ctx context.Context, obs []streaks.Observation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	return upsertBatch(ctx, pool, obs)
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

func upsertBatch(ctx context.Context, db txBeginner, obs []streaks.Observation) (int, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", ErrDataSource, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(upsertObservationPostgresSQL,
			o.Instrument,
			asOfDate(o.Date),
			o.Rate.String(),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("%w: upsert observation: %w", ErrDataSource, err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("%w: upsert observation: %w", ErrDataSource, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", ErrDataSource, err)
	}
	return len(obs), nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *PostgresStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: acquire connection: %w", ErrDataSource, err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("%w: try advisory lock: %w", ErrDataSource, err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// unlock best effort
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

var (
	_ RateStore      = (*PostgresStore)(nil)
	_ AdvisoryLocker = (*PostgresStore)(nil)
)
