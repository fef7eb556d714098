package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
)

var errBoom = errors.New("boom")

// --- Mock implementations ---

type commentCall struct {
	Repo   string
	Number int
	Body   string
}

type closeCall struct {
	Repo   string
	Number int
}

// fakeGitHub serves pull requests from an in-memory map and records every
// mutation it is asked to perform.
type fakeGitHub struct {
	prs      map[string]model.PullRequest // Keyed by model.RecordKey.
	order    []string                     // List order for ListInactivePullRequests.
	comments []commentCall
	closes   []closeCall

	listErr    error
	getErr     error
	commentErr error
	closeErr   error

	listRepos     []string
	listThreshold int
	getCalls      int
}

func newFakeGitHub(prs ...model.PullRequest) *fakeGitHub {
	f := &fakeGitHub{prs: map[string]model.PullRequest{}}
	for _, pr := range prs {
		f.put(pr)
	}
	return f
}

func (f *fakeGitHub) put(pr model.PullRequest) {
	if _, ok := f.prs[pr.Key()]; !ok {
		f.order = append(f.order, pr.Key())
	}
	f.prs[pr.Key()] = pr
}

func (f *fakeGitHub) ListInactivePullRequests(_ context.Context, repos []string, thresholdDays int) ([]model.PullRequest, error) {
	f.listRepos = repos
	f.listThreshold = thresholdDays
	if f.listErr != nil {
		return nil, f.listErr
	}

	var result []model.PullRequest
	for _, key := range f.order {
		pr := f.prs[key]
		if pr.InactivityDays >= thresholdDays {
			result = append(result, pr)
		}
	}
	return result, nil
}

func (f *fakeGitHub) GetPullRequest(_ context.Context, repoFullName string, number int) (*model.PullRequest, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	pr, ok := f.prs[model.RecordKey(repoFullName, number)]
	if !ok {
		return nil, errors.New("not found")
	}
	return &pr, nil
}

func (f *fakeGitHub) PostComment(_ context.Context, repoFullName string, number int, body string) error {
	if f.commentErr != nil {
		return f.commentErr
	}
	f.comments = append(f.comments, commentCall{Repo: repoFullName, Number: number, Body: body})
	return nil
}

func (f *fakeGitHub) ClosePullRequest(_ context.Context, repoFullName string, number int) error {
	if f.closeErr != nil {
		return f.closeErr
	}
	f.closes = append(f.closes, closeCall{Repo: repoFullName, Number: number})
	return nil
}

// fakeRecordStore keeps records in insertion order so FindByStatus is deterministic.
type fakeRecordStore struct {
	records map[string]model.Record
	order   []string
	upserts int

	findErr   error
	upsertErr error
}

func newFakeRecordStore(records ...model.Record) *fakeRecordStore {
	s := &fakeRecordStore{records: map[string]model.Record{}}
	for _, r := range records {
		s.put(r)
	}
	return s
}

func (s *fakeRecordStore) put(r model.Record) {
	if _, ok := s.records[r.Key()]; !ok {
		s.order = append(s.order, r.Key())
	}
	s.records[r.Key()] = r
}

func (s *fakeRecordStore) get(repo string, number int) (model.Record, bool) {
	r, ok := s.records[model.RecordKey(repo, number)]
	return r, ok
}

func (s *fakeRecordStore) Upsert(_ context.Context, record model.Record) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	s.put(record)
	return nil
}

func (s *fakeRecordStore) FindByKey(_ context.Context, repoFullName string, number int) (*model.Record, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	r, ok := s.get(repoFullName, number)
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *fakeRecordStore) FindByStatus(_ context.Context, status model.RecordStatus) ([]model.Record, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	var result []model.Record
	for _, key := range s.order {
		if r := s.records[key]; r.Status == status {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *fakeRecordStore) ListAll(_ context.Context) ([]model.Record, error) {
	var result []model.Record
	for _, key := range s.order {
		result = append(result, s.records[key])
	}
	return result, nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func timePtr(t time.Time) *time.Time { return &t }
