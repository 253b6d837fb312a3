package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations
var migrationsFS embed.FS

const (
	postgresMigrationsDir = "migrations/postgres"
	sqliteMigrationsDir   = "migrations/sqlite"
)

// gooseLogger routes goose output through zerolog.
type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info().Msgf(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatal().Msgf(format, v...)
}

// MigratePostgres applies the embedded schema through the store's pool.
func MigratePostgres(ctx context.Context, store *PostgresStore, logger zerolog.Logger) error {
	pool, err := store.getPool()
	if err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return migrate(ctx, db, "postgres", postgresMigrationsDir, logger)
}

// MigrateSQLite applies the embedded schema to a SQLite store.
func MigrateSQLite(ctx context.Context, store *SQLiteStore, logger zerolog.Logger) error {
	return migrate(ctx, store.DB(), "sqlite3", sqliteMigrationsDir, logger)
}

func migrate(ctx context.Context, db *sql.DB, dialect, dir string, logger zerolog.Logger) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{logger: logger.With().Str("component", "migrate").Logger()})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("%w: goose dialect %s: %w", ErrDataSource, dialect, err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("%w: apply migrations: %w", ErrDataSource, err)
	}
	return nil
}
