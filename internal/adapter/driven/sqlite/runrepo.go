package sqlite

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
	"github.com/ericfisherdev/prreaper/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// RunRepo is the SQLite implementation of the RunStore port interface.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Save inserts a run history entry.
func (r *RunRepo) Save(ctx context.Context, run model.Run) error {
	const query = `
		INSERT INTO reaper_runs (
			id, operation, started_at, finished_at,
			candidates, warned, executed, reactivated, immunized, skipped, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	s := run.Summary
	_, err := r.db.Writer.ExecContext(ctx, query,
		run.ID, string(run.Operation), formatTime(run.StartedAt), formatTime(run.FinishedAt),
		s.Candidates, s.Warned, s.Executed, s.Reactivated, s.Immunized, s.Skipped, run.Error,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}

	return nil
}

// ListRecent returns up to limit runs, newest first.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]model.Run, error) {
	const query = `
		SELECT id, operation, started_at, finished_at,
			candidates, warned, executed, reactivated, immunized, skipped, error
		FROM reaper_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		var (
			run                   model.Run
			operation             string
			startedAt, finishedAt string
		)
		s := &run.Summary
		if err := rows.Scan(
			&run.ID, &operation, &startedAt, &finishedAt,
			&s.Candidates, &s.Warned, &s.Executed, &s.Reactivated, &s.Immunized, &s.Skipped, &run.Error,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		run.Operation = model.Operation(operation)
		if run.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", run.ID, err)
		}
		if run.FinishedAt, err = parseTime(finishedAt); err != nil {
			return nil, fmt.Errorf("parse finished_at for run %s: %w", run.ID, err)
		}

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}
