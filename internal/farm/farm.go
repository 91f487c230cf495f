// Package farm runs answering workers concurrently, each with its own session.
package farm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ricefarm/internal/answer"
	"ricefarm/internal/auth"
	"ricefarm/internal/components/assert"
	"ricefarm/internal/components/chrono"
	"ricefarm/internal/components/telemetry"
	"ricefarm/internal/freerice"
	"ricefarm/internal/retry"
	"ricefarm/internal/stats"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("farm")
var meter = otel.Meter("ricefarm/farm")
var succeededCounter, _ = meter.Int64Counter("farm_rounds_succeeded")
var failedCounter, _ = meter.Int64Counter("farm_rounds_failed")

const (
	report_pool_login = "pool.login"
	report_pool_round = "pool.round"
)

const DefaultReportEvery = 100

// Split is the amount of rounds each worker runs, the remainder of the division is dropped.
func Split(total, workers int) int {
	if workers <= 0 || total <= 0 {
		return 0
	}
	return total / workers
}

type Options struct {
	// RoundPolicy retries a failed round, every retry starts from a fresh fetch.
	RoundPolicy retry.Policy
	// ReportEvery is the amount of rounds between progress reports of a worker.
	ReportEvery int
}

func DefaultOptions() Options {
	return Options{
		RoundPolicy: retry.BoundedPolicy(3),
		ReportEvery: DefaultReportEvery,
	}
}

type WorkerResult struct {
	ID        int
	Rounds    int
	Successes int64
	Failures  int64
	// Err is set when the worker could not log in.
	Err error
}

type Result struct {
	Successes int64
	Failures  int64
	Elapsed   time.Duration
	Workers   []WorkerResult
}

// Throughput is the rate of successful rounds over the whole run.
func (r Result) Throughput() stats.Throughput {
	return stats.Rate(float64(r.Successes), r.Elapsed)
}

type Pool struct {
	auth   auth.Client
	engine answer.Engine
	clock  chrono.API
	opts   Options
	tel    telemetry.API
}

func NewPool(authClient auth.Client, engine answer.Engine, clock chrono.API, opts Options, tel telemetry.API) *Pool {
	assert.NotNil(clock)
	assert.NotNil(tel)
	if opts.ReportEvery <= 0 {
		opts.ReportEvery = DefaultReportEvery
	}
	return &Pool{
		auth:   authClient,
		engine: engine,
		clock:  clock,
		opts:   opts,
		tel:    telemetry.NewScopedAPI("farm", tel),
	}
}

// Run starts `workers` workers that each log in and answer Split(total, workers) rounds.
// A worker that fails to log in does not stop the others, the returned error joins every
// login failure.
func (p *Pool) Run(ctx context.Context, creds freerice.Credentials, total, workers int) (Result, error) {
	if workers <= 0 {
		return Result{}, fmt.Errorf("workers must be positive, got %d", workers)
	}
	if total < 0 {
		return Result{}, fmt.Errorf("total must not be negative, got %d", total)
	}

	ctx, span := tracer.Start(ctx, "pool:Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("farm.total", total),
		attribute.Int("farm.workers", workers),
	)

	shared := stats.New(p.clock)
	rounds := Split(total, workers)
	results := make([]WorkerResult, workers)

	var group errgroup.Group
	for i := 0; i < workers; i++ {
		id := i + 1
		group.Go(func() error {
			results[id-1] = p.work(ctx, id, creds, rounds, shared)
			return nil
		})
	}
	group.Wait()

	snap := shared.Snapshot()
	result := Result{
		Successes: snap.Successes,
		Failures:  snap.Failures,
		Elapsed:   snap.Elapsed,
		Workers:   results,
	}

	var errs []error
	for _, w := range results {
		if w.Err != nil {
			errs = append(errs, fmt.Errorf("worker %d: %w", w.ID, w.Err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (p *Pool) work(ctx context.Context, id int, creds freerice.Credentials, rounds int, shared *stats.Stats) WorkerResult {
	result := WorkerResult{ID: id}

	session, err := p.auth.Login(ctx, creds)
	if err != nil {
		p.tel.ReportBroken(report_pool_login, err, "worker", id)
		result.Err = err
		return result
	}

	workerAttr := metric.WithAttributes(attribute.Int("worker", id))

	var game *freerice.Game
	for i := 0; i < rounds; i++ {
		if ctx.Err() != nil {
			break
		}

		err := p.opts.RoundPolicy.Do(
			ctx,
			func(ctx context.Context, attempt int) error {
				prev := game
				if attempt > 0 {
					prev = nil
				}
				next, err := p.engine.Round(ctx, session, prev)
				if err != nil {
					return err
				}
				game = next
				return nil
			},
			func(err error, attempt int, delay time.Duration) {
				p.tel.ReportWarning(
					report_pool_round,
					err,
					"worker", id,
					"attempt", attempt,
					"retry_in", delay.String(),
				)
			},
		)
		if err != nil && ctx.Err() != nil {
			break
		}
		result.Rounds++

		if err != nil {
			game = nil
			result.Failures++
			shared.RecordFailure()
			failedCounter.Add(ctx, 1, workerAttr)
			p.tel.ReportWarning(report_pool_round, fmt.Errorf("round abandoned: %w", err), "worker", id)
		} else {
			result.Successes++
			shared.RecordSuccess()
			succeededCounter.Add(ctx, 1, workerAttr)
		}

		if result.Rounds%p.opts.ReportEvery == 0 {
			p.reportProgress(id, shared)
		}
	}

	return result
}

func (p *Pool) reportProgress(id int, shared *stats.Stats) {
	snap := shared.Snapshot()
	rate := stats.Rate(float64(snap.Successes), snap.Elapsed)
	p.tel.ReportInfo(
		"progress",
		"worker", id,
		"successes", snap.Successes,
		"failures", snap.Failures,
		"per_second", rate.PerSecond,
		"per_minute", rate.PerMinute,
		"per_hour", rate.PerHour,
	)
	p.tel.ReportCount("successes", snap.Successes)
}
