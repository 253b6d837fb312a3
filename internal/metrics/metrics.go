// Package metrics records report runs with Prometheus.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Outcome labels for finished runs.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder collects run metrics into its own registry.
type Recorder struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rows        prometheus.Gauge
	priorRows   prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// New creates a recorder backed by a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxstreaks_report_runs_total",
				Help: "Report generations by outcome",
			},
			[]string{"outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxstreaks_step_duration_seconds",
				Help:    "Duration of report pipeline steps in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"step"},
		),
		rows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fxstreaks_report_rows",
			Help: "Rows written to the latest report",
		}),
		priorRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fxstreaks_prior_report_rows",
			Help: "Instruments found in the previous day's report",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fxstreaks_last_success_timestamp_seconds",
			Help: "Unix time of the last successful report",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordRun counts a finished run.
func (r *Recorder) RecordRun(outcome string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		r.lastSuccess.SetToCurrentTime()
	}
}

// ObserveStep records how long a pipeline step took.
func (r *Recorder) ObserveStep(step string, d time.Duration) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(step).Observe(d.Seconds())
}

// SetRows records the size of the written report and of its prior.
func (r *Recorder) SetRows(rows, prior int) {
	if r == nil {
		return
	}
	r.rows.Set(float64(rows))
	r.priorRows.Set(float64(prior))
}

// Push sends the registry to a Pushgateway. An empty url is a no-op.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if r == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
