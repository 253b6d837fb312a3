package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"fxstreaks/internal/service"
)

// Generate produces the report for a single day. With DryRun the CSV is written
// to out instead of the artifact store.
func (a *App) Generate(ctx context.Context, opts GenerateOptions, out io.Writer) (service.Result, error) {
	if err := prepare(&opts); err != nil {
		return service.Result{}, err
	}
	date := a.resolveDate(opts.Date)

	comps, err := a.Build(ctx, nil)
	if err != nil {
		return service.Result{}, err
	}
	defer comps.Close()
	defer a.pushMetrics(ctx, comps.Metrics)

	if opts.DryRun {
		res, err := comps.Service.Render(ctx, date)
		if err != nil {
			return service.Result{}, err
		}
		if _, err := out.Write(res.Body); err != nil {
			return service.Result{}, fmt.Errorf("write dry-run output: %w", err)
		}
		a.Logger.Info().Str("date", date.Format(time.DateOnly)).Str("key", res.Key).Msg("dry run, report not stored")
		return res, nil
	}

	res, err := comps.Service.Generate(ctx, date)
	if err != nil {
		return service.Result{}, err
	}
	fmt.Fprintf(out, "Report written to %s\n", res.Location)
	return res, nil
}
