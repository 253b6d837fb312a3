package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"fxstreaks/internal/report"
)

// Export renders a stored report as CSV and/or a PNG bar chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if err := prepare(&opts); err != nil {
		return err
	}
	if opts.Width == 0 {
		opts.Width = a.Config.Export.ChartWidth
	}
	if opts.Height == 0 {
		opts.Height = a.Config.Export.ChartHeight
	}

	date := a.resolveDate(opts.Date)
	rows, location, err := a.loadReport(ctx, date)
	if err != nil {
		return err
	}
	a.Logger.Info().Str("source", location).Int("rows", len(rows)).Msg("exporting report")

	if opts.CSVPath != "" {
		if err := writeFile(opts.CSVPath, func(w io.Writer) error {
			return report.Encode(w, rows)
		}); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if len(rows) == 0 {
			return errors.New("report has no rows to chart")
		}
		if err := writeFile(opts.PNGPath, func(w io.Writer) error {
			return renderChart(w, date, rows, opts.Width, opts.Height)
		}); err != nil {
			return err
		}
	}

	return nil
}

func renderChart(w io.Writer, date time.Time, rows []report.Row, width, height int) error {
	bars := make([]chart.Value, len(rows))
	top := 0.0
	for i, row := range rows {
		bars[i] = chart.Value{Label: row.Instrument, Value: row.AvgConsPercChange}
		top = max(top, row.AvgConsPercChange)
	}
	if top <= 0 {
		top = 1
	}

	graph := chart.BarChart{
		Title:  fmt.Sprintf("Average streak appreciation %% (%s)", date.Format(time.DateOnly)),
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		BarWidth:     barWidth(width, len(rows)),
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: chart.YAxis{
			// a single bar would otherwise give a zero height range
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Bars: bars,
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func barWidth(width, n int) int {
	if n == 0 {
		return 0
	}
	bw := width / (n * 2)
	if bw > 80 {
		bw = 80
	}
	if bw < 8 {
		bw = 8
	}
	return bw
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
