package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxstreaks/internal/config"
	"fxstreaks/internal/secrets"
)

const ratesCSV = `currency_symbol,rate_date,exchange_rate
EUR,2024-01-01,1.0
EUR,2024-01-02,1.1
EUR,2024-01-03,1.2
EUR,2024-01-04,1.3
CHF,2024-01-01,1
CHF,2024-01-02,2
CHF,2024-01-03,3
CHF,2024-01-04,4
GBP,2024-01-01,2.0
GBP,2024-01-02,2.2
GBP,2024-01-03,2.1
GBP,2024-01-04,2.3
`

func jan(d int) *time.Time {
	t := time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		App:       config.AppConfig{Name: "fxstreaks"},
		Secrets:   config.SecretsConfig{Provider: config.SecretsNone},
		Database:  config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(dir, "rates.db"), QueryTimeout: 5 * time.Second},
		Source:    config.SourceConfig{Mode: config.ModeQuery},
		Artifacts: config.ArtifactsConfig{Backend: config.ArtifactBackendFS, Dir: filepath.Join(dir, "artifacts"), Prefix: "reports"},
		Report:    config.ReportConfig{TopN: 10, Timezone: "UTC"},
		Scheduler: config.SchedulerConfig{Interval: 24 * time.Hour, Offset: 30 * time.Minute},
		Export:    config.ExportConfig{ChartWidth: 640, ChartHeight: 360},
	}
	a := NewApp(cfg, zerolog.Nop())

	ctx := context.Background()
	require.NoError(t, a.Migrate(ctx))

	ratesPath := filepath.Join(dir, "rates.csv")
	require.NoError(t, os.WriteFile(ratesPath, []byte(ratesCSV), 0o600))
	require.NoError(t, a.Load(ctx, LoadOptions{File: ratesPath, BatchSize: 5}))
	return a, dir
}

func TestGenerateConsecutiveDays(t *testing.T) {
	a, dir := newTestApp(t)
	ctx := context.Background()
	var out bytes.Buffer

	res, err := a.Generate(ctx, GenerateOptions{Date: jan(3)}, &out)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "CHF", res.Rows[0].Instrument)
	assert.Equal(t, "EUR", res.Rows[1].Instrument)
	assert.False(t, res.Rows[0].PrevDayRank.Valid)
	assert.Contains(t, out.String(), "Report written to ")

	res, err = a.Generate(ctx, GenerateOptions{Date: jan(4)}, &out)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "1", res.Rows[0].PrevDayRank.String())
	assert.Equal(t, "2", res.Rows[1].PrevDayRank.String())
	assert.InDelta(t, 100.0, res.Rows[0].AvgConsPercChange, 1e-9)
	assert.InDelta(t, 3.0, res.Rows[1].AvgConsPosDays, 1e-9)

	written, err := os.ReadFile(filepath.Join(dir, "artifacts", "reports", "2024-01-04.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(written)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "CHF,3,100,1,1,1"), lines[1])
}

func TestGenerateDryRunDoesNotStore(t *testing.T) {
	a, dir := newTestApp(t)
	var out bytes.Buffer

	_, err := a.Generate(context.Background(), GenerateOptions{Date: jan(3), DryRun: true}, &out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "currency_symbol,"))

	_, err = os.Stat(filepath.Join(dir, "artifacts", "reports", "2024-01-03.csv"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestBackfillShowAndExport(t *testing.T) {
	a, dir := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.Backfill(ctx, BackfillOptions{From: *jan(2), To: *jan(4)}))
	for _, day := range []string{"2024-01-02", "2024-01-03", "2024-01-04"} {
		_, err := os.Stat(filepath.Join(dir, "artifacts", "reports", day+".csv"))
		require.NoError(t, err, day)
	}

	var out bytes.Buffer
	require.NoError(t, a.Show(ctx, ShowOptions{Date: jan(4), Limit: 1}, &out))
	assert.Contains(t, out.String(), "CHF")
	assert.NotContains(t, out.String(), "EUR")

	csvPath := filepath.Join(dir, "export", "report.csv")
	pngPath := filepath.Join(dir, "export", "report.png")
	require.NoError(t, a.Export(ctx, ExportOptions{Date: jan(4), CSVPath: csvPath, PNGPath: pngPath}))

	png, err := os.ReadFile(pngPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	exported, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(exported), "EUR")

	err = a.Show(ctx, ShowOptions{Date: jan(20)}, &out)
	assert.Error(t, err)
}

func TestBackfillRejectsInvertedRange(t *testing.T) {
	a, _ := newTestApp(t)
	err := a.Backfill(context.Background(), BackfillOptions{From: *jan(4), To: *jan(2)})
	assert.Error(t, err)

	err = a.Backfill(context.Background(), BackfillOptions{})
	assert.Error(t, err)
}

func TestHandleScheduledEvent(t *testing.T) {
	a, dir := newTestApp(t)

	resp, err := a.HandleScheduledEvent(context.Background(), events.CloudWatchEvent{
		ID:   "evt-1",
		Time: time.Date(2024, time.January, 4, 0, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Report written to "+filepath.Join(dir, "artifacts", "reports", "2024-01-04.csv"), resp.Body)
}

func TestPostgresWithoutCredentialsIsConfigurationError(t *testing.T) {
	cfg := &config.Config{
		Secrets:  config.SecretsConfig{Provider: config.SecretsFile, Path: filepath.Join(t.TempDir(), "missing.json")},
		Database: config.DatabaseConfig{Driver: config.DriverPostgres},
	}
	a := NewApp(cfg, zerolog.Nop())

	_, _, err := a.openStore(context.Background())
	assert.ErrorIs(t, err, secrets.ErrConfiguration)

	a.Config.Secrets.Provider = config.SecretsNone
	_, _, err = a.openStore(context.Background())
	assert.ErrorIs(t, err, secrets.ErrConfiguration)
}
