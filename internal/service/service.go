package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fxstreaks/internal/alerting"
	"fxstreaks/internal/artifact"
	"fxstreaks/internal/config"
	"fxstreaks/internal/metrics"
	"fxstreaks/internal/report"
	"fxstreaks/internal/scheduler"
	"fxstreaks/internal/storage"
	"fxstreaks/internal/streaks"
)

// Result describes a written (or, for dry runs, rendered) report.
type Result struct {
	Date       time.Time
	Key        string
	Location   string
	Rows       []report.Row
	PriorFound bool
	Body       []byte
}

// Service orchestrates ranking, historical merge and artifact persistence.
type Service struct {
	scheduler *scheduler.Scheduler
	store     storage.RateStore
	artifacts artifact.Store
	notifier  alerting.Notifier
	metrics   *metrics.Recorder
	logger    zerolog.Logger

	mode    string
	topN    int
	prefix  string
	locker  storage.AdvisoryLocker
	lockKey int64
}

// New constructs the report service. sched, notifier and recorder may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, store storage.RateStore, artifacts artifact.Store, notifier alerting.Notifier, recorder *metrics.Recorder, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	topN := cfg.Report.TopN
	if topN <= 0 {
		topN = streaks.DefaultTopN
	}

	return &Service{
		scheduler: sched,
		store:     store,
		artifacts: artifacts,
		notifier:  notifier,
		metrics:   recorder,
		logger:    logger.With().Str("component", "service").Logger(),
		mode:      cfg.Source.Mode,
		topN:      topN,
		prefix:    cfg.Artifacts.Prefix,
		locker:    locker,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the daily report loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessDay)
}

// ProcessDay generates the report for date unless another instance holds the
// advisory lock.
func (s *Service) ProcessDay(ctx context.Context, date time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Str("date", date.Format(time.DateOnly)).Msg("skip run because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.Generate(ctx, date)
	return err
}

// Generate builds the report for date, merges it with the previous day's
// report and writes it. Only a missing previous report is tolerated; every
// other failure aborts the run before anything is written.
func (s *Service) Generate(ctx context.Context, date time.Time) (Result, error) {
	res, err := s.Render(ctx, date)
	if err != nil {
		s.metrics.RecordRun(metrics.OutcomeFailure)
		return Result{}, err
	}

	started := time.Now()
	if err := s.artifacts.Put(ctx, res.Key, res.Body); err != nil {
		s.metrics.RecordRun(metrics.OutcomeFailure)
		return Result{}, fmt.Errorf("write report %s: %w", res.Location, err)
	}
	s.metrics.ObserveStep("write", time.Since(started))
	s.metrics.RecordRun(metrics.OutcomeSuccess)

	s.logger.Info().
		Str("date", res.Date.Format(time.DateOnly)).
		Str("location", res.Location).
		Int("rows", len(res.Rows)).
		Bool("prior_found", res.PriorFound).
		Msg("report written")

	s.announce(ctx, res)
	return res, nil
}

// Render computes and encodes the report for date without writing it.
func (s *Service) Render(ctx context.Context, date time.Time) (Result, error) {
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	started := time.Now()
	ranked, err := s.rankings(ctx, date)
	if err != nil {
		return Result{}, err
	}
	s.metrics.ObserveStep("rank", time.Since(started))
	s.logger.Debug().Str("date", date.Format(time.DateOnly)).Int("instruments", len(ranked)).Msg("rankings computed")

	started = time.Now()
	prior, err := s.loadPrior(ctx, date)
	if err != nil {
		return Result{}, err
	}
	s.metrics.ObserveStep("prior", time.Since(started))

	rows := report.MergeWithHistory(ranked, prior)

	var buf bytes.Buffer
	if err := report.Encode(&buf, rows); err != nil {
		return Result{}, fmt.Errorf("encode report: %w", err)
	}
	s.metrics.SetRows(len(rows), len(prior))

	key := report.Key(s.prefix, date)
	return Result{
		Date:       date,
		Key:        key,
		Location:   s.artifacts.Location(key),
		Rows:       rows,
		PriorFound: prior != nil,
		Body:       buf.Bytes(),
	}, nil
}

func (s *Service) rankings(ctx context.Context, date time.Time) ([]streaks.RankedMetric, error) {
	if s.mode == config.ModeLocal {
		obs, err := s.store.ListObservations(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("list observations: %w", err)
		}
		return streaks.ComputeRankings(obs, s.topN), nil
	}

	ranked, err := s.store.QueryRankings(ctx, date, s.topN)
	if err != nil {
		return nil, fmt.Errorf("query rankings: %w", err)
	}
	return ranked, nil
}

func (s *Service) loadPrior(ctx context.Context, date time.Time) (report.Prior, error) {
	key := report.Key(s.prefix, report.Previous(date))
	body, err := s.artifacts.Get(ctx, key)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			s.logger.Info().Str("key", key).Msg("no previous report, prior ranks set to N/A")
			return nil, nil
		}
		return nil, fmt.Errorf("read previous report %s: %w", s.artifacts.Location(key), err)
	}

	prior, err := report.DecodePrior(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode previous report %s: %w", s.artifacts.Location(key), err)
	}
	return prior, nil
}

func (s *Service) announce(ctx context.Context, res Result) {
	if s.notifier == nil {
		return
	}
	note := alerting.Notification{
		Date:     res.Date,
		Location: res.Location,
		Rows:     res.Rows,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("date", res.Date.Format(time.DateOnly)).Msg("failed to announce report")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
