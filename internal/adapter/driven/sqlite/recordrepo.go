package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
	"github.com/ericfisherdev/prreaper/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RecordStore = (*RecordRepo)(nil)

// RecordRepo is the SQLite implementation of the RecordStore port interface.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new RecordRepo backed by the given DB.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

const recordColumns = `repo_full_name, number, status, warning_posted_at, executed_at, last_checked_at`

// Upsert inserts or fully replaces the record stored under its key.
func (r *RecordRepo) Upsert(ctx context.Context, record model.Record) error {
	const query = `
		INSERT INTO pr_records (
			record_key, repo_full_name, number, status, warning_posted_at, executed_at, last_checked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_key) DO UPDATE SET
			status = excluded.status,
			warning_posted_at = excluded.warning_posted_at,
			executed_at = excluded.executed_at,
			last_checked_at = excluded.last_checked_at
	`

	if !record.Status.Valid() {
		return fmt.Errorf("upsert record %s: invalid status %q", record.Key(), record.Status)
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		record.Key(), record.RepoFullName, record.Number, string(record.Status),
		formatNullTime(record.WarningPostedAt), formatNullTime(record.ExecutedAt),
		formatTime(record.LastCheckedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", record.Key(), err)
	}

	return nil
}

// FindByKey returns the record for a pull request, or (nil, nil) if none exists.
func (r *RecordRepo) FindByKey(ctx context.Context, repoFullName string, number int) (*model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM pr_records WHERE record_key = ?`

	key := model.RecordKey(repoFullName, number)
	record, err := scanRecord(r.db.Reader.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find record %s: %w", key, err)
	}

	return record, nil
}

// FindByStatus returns every record in the given status, oldest check first.
func (r *RecordRepo) FindByStatus(ctx context.Context, status model.RecordStatus) ([]model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM pr_records WHERE status = ? ORDER BY last_checked_at, record_key`
	return r.query(ctx, "find records by status "+string(status), query, string(status))
}

// ListAll returns every record ordered by key.
func (r *RecordRepo) ListAll(ctx context.Context) ([]model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM pr_records ORDER BY repo_full_name, number`
	return r.query(ctx, "list records", query)
}

func (r *RecordRepo) query(ctx context.Context, op, query string, args ...any) ([]model.Record, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}

	return records, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.Record, error) {
	var (
		record                      model.Record
		status                      string
		warningPostedAt, executedAt sql.NullString
		lastCheckedAt               string
	)

	if err := s.Scan(
		&record.RepoFullName, &record.Number, &status,
		&warningPostedAt, &executedAt, &lastCheckedAt,
	); err != nil {
		return nil, err
	}

	var err error
	record.Status, err = model.ParseRecordStatus(status)
	if err != nil {
		return nil, err
	}

	if record.WarningPostedAt, err = parseNullTime(warningPostedAt); err != nil {
		return nil, fmt.Errorf("parse warning_posted_at: %w", err)
	}
	if record.ExecutedAt, err = parseNullTime(executedAt); err != nil {
		return nil, fmt.Errorf("parse executed_at: %w", err)
	}
	if record.LastCheckedAt, err = parseTime(lastCheckedAt); err != nil {
		return nil, fmt.Errorf("parse last_checked_at: %w", err)
	}

	return &record, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseTime accepts both our own RFC 3339 values and SQLite's CURRENT_TIMESTAMP format.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
