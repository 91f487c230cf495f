package db

import (
	"context"
	"database/sql"
)

type Run struct {
	ID         int64
	Kind       string
	Username   string
	StartedAt  int64
	FinishedAt sql.NullInt64
	Workers    int64
	Requested  int64
	Successes  int64
	Failures   int64
}

type Sample struct {
	RunID     int64
	Time      int64
	RiceTotal sql.NullInt64
	Delta     int64
	Gained    int64
}

const createRun = `insert into run(kind, username, started_at, workers, requested)
values (?, ?, ?, ?, ?)
returning id`

type CreateRunParams struct {
	Kind      string
	Username  string
	StartedAt int64
	Workers   int64
	Requested int64
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createRun,
		arg.Kind,
		arg.Username,
		arg.StartedAt,
		arg.Workers,
		arg.Requested,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const finishRun = `update run
set finished_at = ?, successes = ?, failures = ?
where id = ?`

type FinishRunParams struct {
	FinishedAt int64
	Successes  int64
	Failures   int64
	ID         int64
}

func (q *Queries) FinishRun(ctx context.Context, arg FinishRunParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, finishRun,
		arg.FinishedAt,
		arg.Successes,
		arg.Failures,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createSample = `insert into sample(run_id, time, rice_total, delta, gained)
values (?, ?, ?, ?, ?)`

func (q *Queries) CreateSample(ctx context.Context, arg Sample) error {
	_, err := q.db.ExecContext(ctx, createSample,
		arg.RunID,
		arg.Time,
		arg.RiceTotal,
		arg.Delta,
		arg.Gained,
	)
	return err
}

const getRecentRuns = `select id, kind, username, started_at, finished_at, workers, requested, successes, failures
from run
order by started_at desc, id desc
limit ?`

func (q *Queries) GetRecentRuns(ctx context.Context, limit int64) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, getRecentRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Run
	for rows.Next() {
		var i Run
		if err := rows.Scan(
			&i.ID,
			&i.Kind,
			&i.Username,
			&i.StartedAt,
			&i.FinishedAt,
			&i.Workers,
			&i.Requested,
			&i.Successes,
			&i.Failures,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getSamples = `select run_id, time, rice_total, delta, gained
from sample
where run_id = ?
order by time asc, rowid asc`

func (q *Queries) GetSamples(ctx context.Context, runID int64) ([]Sample, error) {
	rows, err := q.db.QueryContext(ctx, getSamples, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Sample
	for rows.Next() {
		var i Sample
		if err := rows.Scan(
			&i.RunID,
			&i.Time,
			&i.RiceTotal,
			&i.Delta,
			&i.Gained,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
