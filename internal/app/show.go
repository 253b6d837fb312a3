package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"fxstreaks/internal/artifact"
	"fxstreaks/internal/report"
)

// loadReport fetches and decodes the stored report for date.
func (a *App) loadReport(ctx context.Context, date time.Time) ([]report.Row, string, error) {
	store, err := a.newArtifactStore(ctx)
	if err != nil {
		return nil, "", err
	}

	key := report.Key(a.Config.Artifacts.Prefix, date)
	body, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, "", fmt.Errorf("no report for %s at %s", date.Format(time.DateOnly), store.Location(key))
		}
		return nil, "", err
	}

	rows, err := report.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", store.Location(key), err)
	}
	return rows, store.Location(key), nil
}

// Show prints a stored report as a table.
func (a *App) Show(ctx context.Context, opts ShowOptions, out io.Writer) error {
	if err := prepare(&opts); err != nil {
		return err
	}
	date := a.resolveDate(opts.Date)

	rows, location, err := a.loadReport(ctx, date)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintf(out, "report %s has no ranked instruments\n", location)
		return nil
	}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}

	return writeTable(out, rows)
}

func writeTable(out io.Writer, rows []report.Row) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Rank\tCurrency\tAvg Perc Change %\tAvg Pos Days\tDays Rank\tPrev Rank")

	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%d\t%s\n",
			row.AvgConsPercChangeRank,
			row.Instrument,
			formatFloat(row.AvgConsPercChange, 3),
			formatFloat(row.AvgConsPosDays, 2),
			row.AvgConsPosDaysRank,
			row.PrevDayRank,
		)
	}

	return writer.Flush()
}

func formatFloat(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
