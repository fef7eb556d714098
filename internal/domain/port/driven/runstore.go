package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
)

// RunStore defines the driven port for run history persistence.
type RunStore interface {
	Save(ctx context.Context, run model.Run) error
	// ListRecent returns up to limit runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.Run, error)
}

// RunMetrics receives the outcome of every run for monitoring.
type RunMetrics interface {
	ObserveRun(op model.Operation, duration time.Duration, err error)
	AddTransitions(op model.Operation, summary model.RunSummary)
}
