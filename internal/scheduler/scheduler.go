package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every scheduled run with the report date it covers.
type TickFunc func(ctx context.Context, date time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	// Interval between runs, aligned to the Unix epoch (24h means UTC midnight).
	Interval time.Duration
	// Offset shifts every aligned run, leaving time for the day's rates to land.
	Offset       time.Duration
	StartupDelay time.Duration
	// Location decides which calendar day a run reports on. Nil means UTC.
	Location *time.Location
}

// Scheduler drives the daily report job.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	if opts.Offset < 0 || opts.Offset >= opts.Interval {
		return nil, errors.New("scheduler offset must be within the interval")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}, nil
}

// Run blocks, invoking tick at each scheduled instant until ctx is cancelled.
// Tick failures are logged and the loop carries on with the next day.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.nextTick(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_run", next).Msg("waiting for next run")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		date := s.reportDate(next)
		s.logger.Info().Str("date", date.Format(time.DateOnly)).Msg("executing scheduled run")

		if err := tick(ctx, date); err != nil {
			s.logger.Error().Err(err).Str("date", date.Format(time.DateOnly)).Msg("scheduled run failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

// nextTick returns the first aligned instant plus offset strictly after now.
func (s *Scheduler) nextTick(now time.Time) time.Time {
	base := now.Add(-s.opts.Offset).Truncate(s.opts.Interval)
	next := base.Add(s.opts.Offset)
	if !next.After(now) {
		next = next.Add(s.opts.Interval)
	}
	return next
}

// reportDate is the calendar day of t in the configured location, as UTC
// midnight.
func (s *Scheduler) reportDate(t time.Time) time.Time {
	local := t.In(s.opts.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
