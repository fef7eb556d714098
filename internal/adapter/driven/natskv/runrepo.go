package natskv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
	"github.com/ericfisherdev/prreaper/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// RunRepo keeps run history in the "-runs" bucket. Entries expire with the
// bucket TTL.
type RunRepo struct {
	conn *Conn
}

// NewRunRepo creates a RunRepo on conn's run bucket.
func NewRunRepo(conn *Conn) *RunRepo {
	return &RunRepo{conn: conn}
}

type runDoc struct {
	ID         string           `json:"id"`
	Operation  string           `json:"operation"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Summary    model.RunSummary `json:"summary"`
	Error      string           `json:"error,omitempty"`
}

// runKey sorts lexically by start time so the newest runs list last.
func runKey(run model.Run) string {
	return fmt.Sprintf("%020d.%s", run.StartedAt.UnixNano(), run.ID)
}

// Save stores a run history entry.
func (r *RunRepo) Save(ctx context.Context, run model.Run) error {
	data, err := json.Marshal(runDoc{
		ID:         run.ID,
		Operation:  string(run.Operation),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Summary:    run.Summary,
		Error:      run.Error,
	})
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", run.ID, err)
	}

	if _, err := r.conn.runs.Create(ctx, runKey(run), data); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// ListRecent returns up to limit runs, newest first.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]model.Run, error) {
	ks, err := keys(ctx, r.conn.runs)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(ks)))
	if limit >= 0 && len(ks) > limit {
		ks = ks[:limit]
	}

	runs := make([]model.Run, 0, len(ks))
	for _, k := range ks {
		entry, err := r.conn.runs.Get(ctx, k)
		if isNotFound(err) {
			// Expired between listing and reading.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get run %s: %w", k, err)
		}

		var doc runDoc
		if err := json.Unmarshal(entry.Value(), &doc); err != nil {
			return nil, fmt.Errorf("unmarshal run %s: %w", k, err)
		}

		runs = append(runs, model.Run{
			ID:         doc.ID,
			Operation:  model.Operation(doc.Operation),
			StartedAt:  doc.StartedAt,
			FinishedAt: doc.FinishedAt,
			Summary:    doc.Summary,
			Error:      doc.Error,
		})
	}

	return runs, nil
}
