package natskv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
	"github.com/ericfisherdev/prreaper/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RecordStore = (*RecordRepo)(nil)

// RecordRepo stores one JSON document per pull request in the record bucket.
// Keys are "owner/repo/number" because NATS keys may not contain '#'.
type RecordRepo struct {
	conn *Conn
}

// NewRecordRepo creates a RecordRepo on conn's record bucket.
func NewRecordRepo(conn *Conn) *RecordRepo {
	return &RecordRepo{conn: conn}
}

type recordDoc struct {
	RepoFullName    string     `json:"repo_full_name"`
	Number          int        `json:"number"`
	Status          string     `json:"status"`
	WarningPostedAt *time.Time `json:"warning_posted_at,omitempty"`
	ExecutedAt      *time.Time `json:"executed_at,omitempty"`
	LastCheckedAt   time.Time  `json:"last_checked_at"`
}

func bucketKey(repoFullName string, number int) string {
	return repoFullName + "/" + strconv.Itoa(number)
}

// Upsert overwrites the document for record unconditionally.
func (r *RecordRepo) Upsert(ctx context.Context, record model.Record) error {
	if !record.Status.Valid() {
		return fmt.Errorf("upsert record %s: invalid status %q", record.Key(), record.Status)
	}

	data, err := json.Marshal(recordDoc{
		RepoFullName:    record.RepoFullName,
		Number:          record.Number,
		Status:          string(record.Status),
		WarningPostedAt: record.WarningPostedAt,
		ExecutedAt:      record.ExecutedAt,
		LastCheckedAt:   record.LastCheckedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", record.Key(), err)
	}

	if _, err := r.conn.records.Put(ctx, bucketKey(record.RepoFullName, record.Number), data); err != nil {
		return fmt.Errorf("upsert record %s: %w", record.Key(), err)
	}
	return nil
}

// FindByKey returns the record for a pull request, or (nil, nil) if none exists.
func (r *RecordRepo) FindByKey(ctx context.Context, repoFullName string, number int) (*model.Record, error) {
	record, err := r.get(ctx, bucketKey(repoFullName, number))
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find record %s: %w", model.RecordKey(repoFullName, number), err)
	}
	return record, nil
}

// FindByStatus scans the bucket and returns matching records, oldest check first.
func (r *RecordRepo) FindByStatus(ctx context.Context, status model.RecordStatus) ([]model.Record, error) {
	all, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("find records by status %s: %w", status, err)
	}

	matched := []model.Record{}
	for _, rec := range all {
		if rec.Status == status {
			matched = append(matched, rec)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].LastCheckedAt.Before(matched[j].LastCheckedAt)
	})
	return matched, nil
}

// ListAll returns every record ordered by repository and number.
func (r *RecordRepo) ListAll(ctx context.Context) ([]model.Record, error) {
	all, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return all, nil
}

// load reads every record in the bucket, sorted by repository then number.
func (r *RecordRepo) load(ctx context.Context) ([]model.Record, error) {
	ks, err := keys(ctx, r.conn.records)
	if err != nil {
		return nil, err
	}

	records := make([]model.Record, 0, len(ks))
	for _, k := range ks {
		rec, err := r.get(ctx, k)
		if isNotFound(err) {
			// Deleted between listing and reading.
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].RepoFullName != records[j].RepoFullName {
			return records[i].RepoFullName < records[j].RepoFullName
		}
		return records[i].Number < records[j].Number
	})
	return records, nil
}

func (r *RecordRepo) get(ctx context.Context, key string) (*model.Record, error) {
	entry, err := r.conn.records.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var doc recordDoc
	if err := json.Unmarshal(entry.Value(), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal key %s: %w", key, err)
	}

	status, err := model.ParseRecordStatus(doc.Status)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", key, err)
	}

	return &model.Record{
		RepoFullName:    doc.RepoFullName,
		Number:          doc.Number,
		Status:          status,
		WarningPostedAt: doc.WarningPostedAt,
		ExecutedAt:      doc.ExecutedAt,
		LastCheckedAt:   doc.LastCheckedAt,
	}, nil
}
