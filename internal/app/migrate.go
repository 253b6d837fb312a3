package app

import (
	"context"
	"fmt"
	"os"

	"fxstreaks/internal/storage"
)

// Migrate applies the embedded schema to the configured database.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return a.migrateStore(ctx, store)
}

func (a *App) migrateStore(ctx context.Context, store storage.RateStore) error {
	switch s := store.(type) {
	case *storage.PostgresStore:
		return storage.MigratePostgres(ctx, s, a.Logger)
	case *storage.SQLiteStore:
		return storage.MigrateSQLite(ctx, s, a.Logger)
	default:
		return fmt.Errorf("migrations not supported for %T", store)
	}
}

// Load imports a rates CSV into the configured database.
func (a *App) Load(ctx context.Context, opts LoadOptions) error {
	if err := prepare(&opts); err != nil {
		return err
	}

	file, err := os.Open(opts.File)
	if err != nil {
		return fmt.Errorf("open rates file: %w", err)
	}
	defer file.Close()

	obs, err := storage.ReadObservationsCSV(file)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	loaded := 0
	for start := 0; start < len(obs); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(obs))
		n, err := store.UpsertObservations(ctx, obs[start:end])
		loaded += n
		if err != nil {
			return fmt.Errorf("load rates after %d rows: %w", loaded, err)
		}
	}

	a.Logger.Info().Str("file", opts.File).Int("rows", loaded).Msg("rates loaded")
	return nil
}
