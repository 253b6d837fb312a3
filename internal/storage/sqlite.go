package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"fxstreaks/internal/streaks"
)

// SQLiteStore serves the rate series from a local SQLite file.
type SQLiteStore struct {
	db      *sql.DB
	timeout time.Duration
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, timeout time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", ErrDataSource, err)
	}
	// a single writer keeps the file free of SQLITE_BUSY between statements
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping sqlite: %w", ErrDataSource, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: set journal mode: %w", ErrDataSource, err)
	}

	return &SQLiteStore{db: db, timeout: timeout}, nil
}

// DB exposes the handle for migrations.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close releases the database handle.
func (s *SQLiteStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

// QueryRankings implements RateStore. SQLite has no exact decimal type, so
// the ranking runs in process over the stored series.
func (s *SQLiteStore) QueryRankings(ctx context.Context, asOf time.Time, topN int) ([]streaks.RankedMetric, error) {
	obs, err := s.ListObservations(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return streaks.ComputeRankings(obs, topN), nil
}

// ListObservations implements RateStore.
func (s *SQLiteStore) ListObservations(ctx context.Context, asOf time.Time) ([]streaks.Observation, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, listObservationsSQLiteSQL, asOf.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("%w: list observations: %w", ErrDataSource, err)
	}
	defer rows.Close()

	obs := make([]streaks.Observation, 0)
	for rows.Next() {
		var (
			o          streaks.Observation
			date, rate string
		)
		if err := rows.Scan(&o.Instrument, &date, &rate); err != nil {
			return nil, fmt.Errorf("%w: scan observation: %w", ErrDataSource, err)
		}
		o.Date, err = time.Parse(time.DateOnly, date)
		if err != nil {
			return nil, fmt.Errorf("%w: parse rate_date %q: %w", ErrDataSource, date, err)
		}
		o.Rate, err = decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("%w: parse exchange rate %q: %w", ErrDataSource, rate, err)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list observations: %w", ErrDataSource, err)
	}
	return obs, nil
}

// UpsertObservations inserts or updates rates in one transaction.
func (s *SQLiteStore) UpsertObservations(ctx context.Context, obs []streaks.Observation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", ErrDataSource, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertObservationSQLiteSQL)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare upsert: %w", ErrDataSource, err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, o.Instrument, o.Date.Format(time.DateOnly), o.Rate.String()); err != nil {
			return 0, fmt.Errorf("%w: upsert observation: %w", ErrDataSource, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", ErrDataSource, err)
	}
	return len(obs), nil
}

var _ RateStore = (*SQLiteStore)(nil)
