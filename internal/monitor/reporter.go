// Package monitor polls an account's rice total and derives the effective request rate.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ricefarm/internal/auth"
	"ricefarm/internal/components/assert"
	"ricefarm/internal/components/chrono"
	"ricefarm/internal/components/telemetry"
	"ricefarm/internal/freerice"
	"ricefarm/internal/stats"

	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("ricefarm/monitor")
var totalGauge, _ = meter.Int64Gauge("rice_total")
var gainedGauge, _ = meter.Int64Gauge("rice_gained")
var rateGauge, _ = meter.Float64Gauge("effective_requests_per_second")

const (
	report_reporter_sample = "reporter.sample"
	report_reporter_sink   = "reporter.sink"
)

const (
	// PointsPerRequest is the rice awarded for one correct answer.
	PointsPerRequest = 10
	DefaultInterval  = 10 * time.Second
)

var ErrMissingTotal = errors.New("rice total missing from game")

// Report is emitted once per sample.
type Report struct {
	Time    time.Time
	RunTime time.Duration
	// Total is zero when the sample failed.
	Total  int64
	Delta  int64
	Gained int64
	Failed bool
	Rate   stats.Throughput
}

type SampleSink interface {
	RecordSample(ctx context.Context, report Report) error
}

// SinkFunc adapts a function to a SampleSink.
type SinkFunc func(ctx context.Context, report Report) error

func (f SinkFunc) RecordSample(ctx context.Context, report Report) error {
	return f(ctx, report)
}

type Reporter struct {
	auth     auth.Client
	clock    chrono.API
	interval time.Duration
	sink     SampleSink
	tel      telemetry.API
}

func NewReporter(authClient auth.Client, clock chrono.API, interval time.Duration, tel telemetry.API) *Reporter {
	assert.NotNil(clock)
	assert.NotNil(tel)
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{
		auth:     authClient,
		clock:    clock,
		interval: interval,
		tel:      telemetry.NewScopedAPI("monitor", tel),
	}
}

// SetSink makes every report also go to `sink`.
func (r *Reporter) SetSink(sink SampleSink) {
	r.sink = sink
}

func readTotal(ctx context.Context, session *freerice.Session) (int64, error) {
	game, err := session.FetchGame(ctx)
	if err != nil {
		return 0, err
	}
	total, ok := game.RiceTotal()
	if !ok {
		return 0, ErrMissingTotal
	}
	return total, nil
}

// Run logs in with its own session and reports a sample immediately, then every interval,
// until ctx is done. It only fails when the login or the initial total cannot be read.
func (r *Reporter) Run(ctx context.Context, creds freerice.Credentials) error {
	session, err := r.auth.Login(ctx, creds)
	if err != nil {
		return err
	}

	initial, err := readTotal(ctx, session)
	if err != nil {
		return fmt.Errorf("read initial total: %w", err)
	}
	r.tel.ReportInfo("initial rice total", "total", initial)

	tracker := NewTracker(initial)
	start := r.clock.Now()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.sample(ctx, session, tracker, start)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Reporter) sample(ctx context.Context, session *freerice.Session, tracker *Tracker, start time.Time) {
	report := Report{}

	total, err := readTotal(ctx, session)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		tracker.Fail()
		report.Failed = true
		r.tel.ReportWarning(report_reporter_sample, err)
	} else {
		report.Total = total
		report.Delta = tracker.Observe(total)
	}

	report.Time = r.clock.Now()
	report.RunTime = report.Time.Sub(start)
	report.Gained = tracker.Gained()
	report.Rate = stats.Rate(float64(report.Gained)/PointsPerRequest, report.RunTime)

	r.tel.ReportInfo(
		"telemetry report",
		"run_time", report.RunTime.Truncate(time.Second).String(),
		"delta", report.Delta,
		"gained", report.Gained,
		"rps", fmt.Sprintf("%.2f", report.Rate.PerSecond),
		"rpm", fmt.Sprintf("%.2f", report.Rate.PerMinute),
		"rph", fmt.Sprintf("%.2f", report.Rate.PerHour),
	)
	r.tel.ReportCount("gained", report.Gained)

	if !report.Failed {
		totalGauge.Record(ctx, report.Total)
	}
	gainedGauge.Record(ctx, report.Gained)
	rateGauge.Record(ctx, report.Rate.PerSecond)

	if r.sink != nil {
		err = r.sink.RecordSample(ctx, report)
		if err != nil {
			r.tel.ReportWarning(report_reporter_sink, err)
		}
	}
}
