package model

import (
	"fmt"
	"time"
)

// Operation names one of the two independently scheduled reaper operations.
type Operation string

const (
	OperationWarn    Operation = "warn"    // ScanAndWarn
	OperationExecute Operation = "execute" // ReviewAndExecute
)

// ParseOperation converts a CLI or URL segment into an Operation.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OperationWarn, OperationExecute:
		return op, nil
	default:
		return "", fmt.Errorf("unknown operation %q", s)
	}
}

// RunSummary counts what one invocation of an operation did.
type RunSummary struct {
	Candidates  int
	Warned      int
	Executed    int
	Reactivated int
	Immunized   int
	Skipped     int
}

// Run is the history entry for one invocation of an operation.
type Run struct {
	ID         string
	Operation  Operation
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    RunSummary
	Error      string // Empty when the run succeeded.
}

// Succeeded reports whether the run completed without error.
func (r Run) Succeeded() bool {
	return r.Error == ""
}

// Duration returns the wall-clock time the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
