package driven

import (
	"context"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
)

// RecordStore defines the driven port for pull request record persistence.
// Upsert is an unconditional overwrite by key; the last write wins.
type RecordStore interface {
	Upsert(ctx context.Context, record model.Record) error
	// FindByKey returns (nil, nil) if no record exists for the pull request.
	FindByKey(ctx context.Context, repoFullName string, number int) (*model.Record, error)
	FindByStatus(ctx context.Context, status model.RecordStatus) ([]model.Record, error)
	ListAll(ctx context.Context) ([]model.Record, error)
}
