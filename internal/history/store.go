// Package history persists farm runs and telemetry samples to sqlite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ricefarm/internal/history/db"

	_ "modernc.org/sqlite"
)

const (
	KindFarm  = "farm"
	KindWatch = "watch"
)

type Run struct {
	ID        int64
	Kind      string
	Username  string
	StartedAt time.Time
	// FinishedAt is zero while the run has not finished.
	FinishedAt time.Time
	Workers    int
	Requested  int
	Successes  int64
	Failures   int64
}

type Sample struct {
	Time time.Time
	// RiceTotal is -1 when the sample failed.
	RiceTotal int64
	Delta     int64
	Gained    int64
}

type Store struct {
	db  *sql.DB
	qry *db.Queries
}

// Open opens (or creates) the database at `path` and applies the schema.
func Open(path string) (Store, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, err
	}
	// a single connection keeps :memory: databases alive and serializes writes
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		database.Close()
		return Store{}, fmt.Errorf("set journal mode: %w", err)
	}
	_, err = database.Exec(db.Schema)
	if err != nil {
		database.Close()
		return Store{}, fmt.Errorf("apply schema: %w", err)
	}
	return NewStore(database), nil
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

func (s Store) Close() error {
	return s.db.Close()
}

// StartRun records the beginning of a run and returns its id.
func (s Store) StartRun(ctx context.Context, run Run) (int64, error) {
	return s.qry.CreateRun(ctx, db.CreateRunParams{
		Kind:      run.Kind,
		Username:  run.Username,
		StartedAt: run.StartedAt.Unix(),
		Workers:   int64(run.Workers),
		Requested: int64(run.Requested),
	})
}

func (s Store) FinishRun(ctx context.Context, id int64, finishedAt time.Time, successes, failures int64) error {
	affected, err := s.qry.FinishRun(ctx, db.FinishRunParams{
		ID:         id,
		FinishedAt: finishedAt.Unix(),
		Successes:  successes,
		Failures:   failures,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("finish run %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

func (s Store) RecordSample(ctx context.Context, runID int64, sample Sample) error {
	total := sql.NullInt64{Int64: sample.RiceTotal, Valid: sample.RiceTotal >= 0}
	return s.qry.CreateSample(ctx, db.Sample{
		RunID:     runID,
		Time:      sample.Time.Unix(),
		RiceTotal: total,
		Delta:     sample.Delta,
		Gained:    sample.Gained,
	})
}

// RecentRuns returns at most `limit` runs, newest first.
func (s Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.qry.GetRecentRuns(ctx, int64(limit))
	if err != nil {
		return nil, err
	}

	runs := make([]Run, len(rows))
	for i, r := range rows {
		runs[i] = Run{
			ID:        r.ID,
			Kind:      r.Kind,
			Username:  r.Username,
			StartedAt: time.Unix(r.StartedAt, 0),
			Workers:   int(r.Workers),
			Requested: int(r.Requested),
			Successes: r.Successes,
			Failures:  r.Failures,
		}
		if r.FinishedAt.Valid {
			runs[i].FinishedAt = time.Unix(r.FinishedAt.Int64, 0)
		}
	}
	return runs, nil
}

func (s Store) Samples(ctx context.Context, runID int64) ([]Sample, error) {
	rows, err := s.qry.GetSamples(ctx, runID)
	if err != nil {
		return nil, err
	}

	samples := make([]Sample, len(rows))
	for i, r := range rows {
		samples[i] = Sample{
			Time:      time.Unix(r.Time, 0),
			RiceTotal: -1,
			Delta:     r.Delta,
			Gained:    r.Gained,
		}
		if r.RiceTotal.Valid {
			samples[i].RiceTotal = r.RiceTotal.Int64
		}
	}
	return samples, nil
}
