package app

import (
	"context"
	"errors"
	"time"
)

// Backfill regenerates reports for every day in [From, To]. Days run in order
// so each report merges with the one written just before it.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	if err := prepare(&opts); err != nil {
		return err
	}

	start := truncateDay(opts.From)
	end := truncateDay(opts.To)
	if end.Before(start) {
		return errors.New("backfill range is empty, check --from/--to")
	}

	comps, err := a.Build(ctx, nil)
	if err != nil {
		return err
	}
	defer comps.Close()
	defer a.pushMetrics(ctx, comps.Metrics)

	processed := 0
	failed := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := comps.Service.Generate(ctx, day)
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Str("date", day.Format(time.DateOnly)).Msg("backfill day failed")
			if !opts.ContinueOnError {
				return err
			}
			continue
		}
		processed++
		a.Logger.Debug().Str("location", res.Location).Msg("backfill day written")
	}

	a.Logger.Info().Int("processed", processed).Int("failed", failed).Msg("backfill complete")
	if failed > 0 {
		return errors.New("some days failed to backfill, check the logs")
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
