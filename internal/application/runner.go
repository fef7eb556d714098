package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
	"github.com/ericfisherdev/prreaper/internal/domain/port/driven"
)

// Sentinel errors returned by Runner.
var (
	// ErrRunInProgress indicates the requested operation is already running.
	ErrRunInProgress = errors.New("operation already running")

	// ErrUnknownOperation indicates an operation name the runner does not know.
	ErrUnknownOperation = errors.New("unknown operation")
)

// Reaper is the engine surface the Runner drives.
type Reaper interface {
	ScanAndWarn(ctx context.Context) (model.RunSummary, error)
	ReviewAndExecute(ctx context.Context) (model.RunSummary, error)
}

// Runner wraps each reaper operation in a tracked run: it assigns a run ID,
// rejects overlapping invocations of the same operation, and reports the
// outcome to the run history and metrics. The two operations never block
// each other.
type Runner struct {
	reaper  Reaper
	runs    driven.RunStore   // May be nil.
	metrics driven.RunMetrics // May be nil.
	logger  *slog.Logger

	warnMu    sync.Mutex
	executeMu sync.Mutex
}

// NewRunner creates a Runner. runs and metrics may be nil to disable history
// or metrics respectively.
func NewRunner(reaper Reaper, runs driven.RunStore, metrics driven.RunMetrics, logger *slog.Logger) *Runner {
	return &Runner{
		reaper:  reaper,
		runs:    runs,
		metrics: metrics,
		logger:  logger,
	}
}

// Run executes op once and returns its history entry. The returned error is
// the operation's own error, ErrRunInProgress, or ErrUnknownOperation.
func (r *Runner) Run(ctx context.Context, op model.Operation) (model.Run, error) {
	var (
		mu   *sync.Mutex
		call func(context.Context) (model.RunSummary, error)
	)
	switch op {
	case model.OperationWarn:
		mu, call = &r.warnMu, r.reaper.ScanAndWarn
	case model.OperationExecute:
		mu, call = &r.executeMu, r.reaper.ReviewAndExecute
	default:
		return model.Run{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}

	if !mu.TryLock() {
		r.logger.Warn("run skipped, previous run still in progress", "operation", string(op))
		return model.Run{}, fmt.Errorf("%s: %w", op, ErrRunInProgress)
	}
	defer mu.Unlock()

	run := model.Run{
		ID:        uuid.NewString(),
		Operation: op,
		StartedAt: time.Now().UTC(),
	}
	logger := r.logger.With("run_id", run.ID, "operation", string(op))
	logger.Info("run started")

	summary, err := call(ctx)

	run.FinishedAt = time.Now().UTC()
	run.Summary = summary
	if err != nil {
		run.Error = err.Error()
	}

	if r.metrics != nil {
		r.metrics.ObserveRun(op, run.Duration(), err)
		r.metrics.AddTransitions(op, summary)
	}

	if r.runs != nil {
		// The run's own context may already be canceled; history is still written.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if saveErr := r.runs.Save(saveCtx, run); saveErr != nil {
			logger.Error("save run history failed", "error", saveErr)
		}
		cancel()
	}

	attrs := []any{
		"duration", run.Duration().Round(time.Millisecond),
		"candidates", summary.Candidates,
		"warned", summary.Warned,
		"executed", summary.Executed,
		"reactivated", summary.Reactivated,
		"immunized", summary.Immunized,
		"skipped", summary.Skipped,
	}
	if err != nil {
		logger.Error("run failed", append(attrs, "error", err)...)
		return run, err
	}

	logger.Info("run complete", attrs...)
	return run, nil
}
