package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fxstreaks/internal/alerting"
	"fxstreaks/internal/artifact"
	"fxstreaks/internal/config"
	"fxstreaks/internal/metrics"
	"fxstreaks/internal/report"
	"fxstreaks/internal/storage"
	"fxstreaks/internal/streaks"
)

type fakeStore struct {
	ranked    []streaks.RankedMetric
	obs       []streaks.Observation
	err       error
	queries   int
	lists     int
	lockTaken bool
	unlocked  bool
}

func (f *fakeStore) QueryRankings(ctx context.Context, asOf time.Time, topN int) ([]streaks.RankedMetric, error) {
	f.queries++
	return f.ranked, f.err
}

func (f *fakeStore) ListObservations(ctx context.Context, asOf time.Time) ([]streaks.Observation, error) {
	f.lists++
	return f.obs, f.err
}

func (f *fakeStore) UpsertObservations(ctx context.Context, obs []streaks.Observation) (int, error) {
	return len(obs), nil
}

func (f *fakeStore) Close() {}

type lockingStore struct {
	fakeStore
}

func (l *lockingStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	if l.lockTaken {
		return nil, false, nil
	}
	return func() { l.unlocked = true }, true, nil
}

type memArtifacts struct {
	objects map[string][]byte
	getErr  error
	putErr  error
	puts    []string
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{objects: map[string][]byte{}}
}

func (m *memArtifacts) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	body, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", artifact.ErrNotFound, key)
	}
	return body, nil
}

func (m *memArtifacts) Put(ctx context.Context, key string, body []byte) error {
	if m.putErr != nil {
		return fmt.Errorf("%w: %w", artifact.ErrWrite, m.putErr)
	}
	m.objects[key] = body
	m.puts = append(m.puts, key)
	return nil
}

func (m *memArtifacts) Location(key string) string {
	return "mem://" + key
}

type recordingNotifier struct {
	notes []alerting.Notification
	err   error
}

func (r *recordingNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	r.notes = append(r.notes, note)
	return r.err
}

func testConfig(mode string) *config.Config {
	return &config.Config{
		Source:    config.SourceConfig{Mode: mode},
		Report:    config.ReportConfig{TopN: 10},
		Artifacts: config.ArtifactsConfig{Prefix: "reports"},
	}
}

func ranked(symbol string, days, perc float64, daysRank, percRank int) streaks.RankedMetric {
	return streaks.RankedMetric{
		InstrumentMetric:      streaks.InstrumentMetric{Instrument: symbol, AvgConsPosDays: days, AvgConsPercChange: perc},
		AvgConsPosDaysRank:    daysRank,
		AvgConsPercChangeRank: percRank,
	}
}

var day = time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

func TestGenerateWithoutPriorWritesNotAvailable(t *testing.T) {
	store := &fakeStore{ranked: []streaks.RankedMetric{
		ranked("GBP", 3, 12.5, 1, 1),
		ranked("EUR", 2, 10, 2, 2),
	}}
	arts := newMemArtifacts()
	svc := New(testConfig(config.ModeQuery), nil, store, arts, nil, metrics.New(), zerolog.Nop())

	res, err := svc.Generate(context.Background(), day)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Key != "reports/2024-03-05.csv" || res.Location != "mem://reports/2024-03-05.csv" {
		t.Fatalf("unexpected key/location %s %s", res.Key, res.Location)
	}
	if res.PriorFound {
		t.Fatal("no prior report existed")
	}
	for _, row := range res.Rows {
		if row.PrevDayRank.Valid {
			t.Fatalf("expected N/A prev rank for %s", row.Instrument)
		}
	}

	body := string(arts.objects["reports/2024-03-05.csv"])
	want := "currency_symbol,avg_cons_pos_days,avg_cons_perc_change,avg_cons_pos_days_rank,avg_cons_perc_change_rank,prev_day_rank\n" +
		"GBP,3,12.5,1,1,N/A\n" +
		"EUR,2,10,2,2,N/A\n"
	if body != want {
		t.Fatalf("unexpected artifact:\n%s", body)
	}
}

func TestGenerateMergesPreviousDay(t *testing.T) {
	store := &fakeStore{ranked: []streaks.RankedMetric{
		ranked("EUR", 2, 10, 1, 1),
		ranked("GBP", 2, 5, 1, 2),
	}}
	arts := newMemArtifacts()
	arts.objects["reports/2024-03-04.csv"] = []byte(
		"currency_symbol,avg_cons_pos_days,avg_cons_perc_change,avg_cons_pos_days_rank,avg_cons_perc_change_rank,prev_day_rank\n" +
			"JPY,2,20,1,1,N/A\n" +
			"CHF,2,15,1,2,N/A\n" +
			"EUR,2,10,1,3,N/A\n")
	svc := New(testConfig(config.ModeQuery), nil, store, arts, nil, nil, zerolog.Nop())

	res, err := svc.Generate(context.Background(), day)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !res.PriorFound || len(res.Rows) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := res.Rows[0].PrevDayRank.String(); got != "3" {
		t.Fatalf("EUR prev rank should be 3, got %s", got)
	}
	if got := res.Rows[1].PrevDayRank.String(); got != report.NotAvailable {
		t.Fatalf("GBP prev rank should be N/A, got %s", got)
	}
	if strings.Contains(string(arts.objects[res.Key]), "JPY") {
		t.Fatal("instruments only in the prior report must not be emitted")
	}
}

func TestGenerateLocalModeUsesEngine(t *testing.T) {
	var obs []streaks.Observation
	for i, r := range []float64{1.0, 1.05, 1.10, 1.08, 1.12} {
		obs = append(obs, streaks.Observation{Instrument: "EUR", Date: day.AddDate(0, 0, i-4), Rate: decimal.NewFromFloat(r)})
	}
	store := &fakeStore{obs: obs}
	svc := New(testConfig(config.ModeLocal), nil, store, newMemArtifacts(), nil, nil, zerolog.Nop())

	res, err := svc.Generate(context.Background(), day)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if store.lists != 1 || store.queries != 0 {
		t.Fatalf("local mode should list observations, lists=%d queries=%d", store.lists, store.queries)
	}
	if len(res.Rows) != 1 || res.Rows[0].AvgConsPosDays != 2 {
		t.Fatalf("unexpected rows %+v", res.Rows)
	}
}

func TestGeneratePropagatesFailures(t *testing.T) {
	denied := errors.New("AccessDenied")

	cases := []struct {
		name  string
		store *fakeStore
		arts  func() *memArtifacts
		is    error
	}{
		{
			name:  "data source",
			store: &fakeStore{err: fmt.Errorf("%w: timeout", storage.ErrDataSource)},
			arts:  newMemArtifacts,
			is:    storage.ErrDataSource,
		},
		{
			name:  "prior read",
			store: &fakeStore{ranked: []streaks.RankedMetric{ranked("EUR", 2, 10, 1, 1)}},
			arts: func() *memArtifacts {
				m := newMemArtifacts()
				m.getErr = denied
				return m
			},
			is: denied,
		},
		{
			name:  "write",
			store: &fakeStore{ranked: []streaks.RankedMetric{ranked("EUR", 2, 10, 1, 1)}},
			arts: func() *memArtifacts {
				m := newMemArtifacts()
				m.putErr = denied
				return m
			},
			is: artifact.ErrWrite,
		},
	}

	for _, tc := range cases {
		arts := tc.arts()
		svc := New(testConfig(config.ModeQuery), nil, tc.store, arts, nil, metrics.New(), zerolog.Nop())
		_, err := svc.Generate(context.Background(), day)
		if !errors.Is(err, tc.is) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.is, err)
		}
		if len(arts.puts) != 0 {
			t.Fatalf("%s: nothing should be written, got %v", tc.name, arts.puts)
		}
	}
}

func TestGenerateRejectsMalformedPrior(t *testing.T) {
	arts := newMemArtifacts()
	arts.objects["reports/2024-03-04.csv"] = []byte("currency_symbol,avg_cons_perc_change_rank\nEUR,first\n")
	store := &fakeStore{ranked: []streaks.RankedMetric{ranked("EUR", 2, 10, 1, 1)}}
	svc := New(testConfig(config.ModeQuery), nil, store, arts, nil, nil, zerolog.Nop())

	if _, err := svc.Generate(context.Background(), day); !errors.Is(err, report.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestNotifierFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{ranked: []streaks.RankedMetric{ranked("EUR", 2, 10, 1, 1)}}
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	svc := New(testConfig(config.ModeQuery), nil, store, newMemArtifacts(), notifier, nil, zerolog.Nop())

	res, err := svc.Generate(context.Background(), day)
	if err != nil {
		t.Fatalf("notifier failure must not fail the run: %v", err)
	}
	if len(notifier.notes) != 1 || notifier.notes[0].Location != res.Location {
		t.Fatalf("unexpected notifications %+v", notifier.notes)
	}
}

func TestRenderDoesNotWrite(t *testing.T) {
	store := &fakeStore{ranked: []streaks.RankedMetric{ranked("EUR", 2, 10, 1, 1)}}
	arts := newMemArtifacts()
	svc := New(testConfig(config.ModeQuery), nil, store, arts, nil, nil, zerolog.Nop())

	res, err := svc.Render(context.Background(), day.Add(15*time.Hour))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(arts.puts) != 0 || len(res.Body) == 0 {
		t.Fatalf("render should produce a body without writing, puts=%v", arts.puts)
	}
	if !res.Date.Equal(day) {
		t.Fatalf("report date should be truncated to the day, got %s", res.Date)
	}
}

func TestProcessDayHonoursAdvisoryLock(t *testing.T) {
	cfg := testConfig(config.ModeQuery)
	cfg.Scheduler.AdvisoryLockKey = 42

	held := &lockingStore{fakeStore{ranked: []streaks.RankedMetric{ranked("EUR", 2, 10, 1, 1)}, lockTaken: true}}
	arts := newMemArtifacts()
	svc := New(cfg, nil, held, arts, nil, nil, zerolog.Nop())
	if err := svc.ProcessDay(context.Background(), day); err != nil {
		t.Fatalf("process day: %v", err)
	}
	if held.queries != 0 || len(arts.puts) != 0 {
		t.Fatal("run should be skipped while the lock is held elsewhere")
	}

	free := &lockingStore{fakeStore{ranked: []streaks.RankedMetric{ranked("EUR", 2, 10, 1, 1)}}}
	svc = New(cfg, nil, free, arts, nil, nil, zerolog.Nop())
	if err := svc.ProcessDay(context.Background(), day); err != nil {
		t.Fatalf("process day: %v", err)
	}
	if len(arts.puts) != 1 || !free.unlocked {
		t.Fatalf("expected one write and a released lock, puts=%v unlocked=%v", arts.puts, free.unlocked)
	}
}

func TestRunWithoutScheduler(t *testing.T) {
	svc := New(testConfig(config.ModeQuery), nil, &fakeStore{}, newMemArtifacts(), nil, nil, zerolog.Nop())
	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error without scheduler")
	}
}
