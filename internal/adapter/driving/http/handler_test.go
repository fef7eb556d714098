package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/prreaper/internal/adapter/driving/http"
	"github.com/ericfisherdev/prreaper/internal/application"
	"github.com/ericfisherdev/prreaper/internal/domain/model"
)

// --- Mock implementations ---

type mockRecordStore struct {
	records    []model.Record
	record     *model.Record
	err        error
	statusSeen model.RecordStatus
}

func (m *mockRecordStore) Upsert(_ context.Context, _ model.Record) error { return nil }
func (m *mockRecordStore) FindByKey(_ context.Context, _ string, _ int) (*model.Record, error) {
	return m.record, m.err
}
func (m *mockRecordStore) FindByStatus(_ context.Context, status model.RecordStatus) ([]model.Record, error) {
	m.statusSeen = status
	return m.records, m.err
}
func (m *mockRecordStore) ListAll(_ context.Context) ([]model.Record, error) {
	return m.records, m.err
}

type mockRunStore struct {
	runs      []model.Run
	err       error
	limitSeen int
}

func (m *mockRunStore) Save(_ context.Context, _ model.Run) error { return nil }
func (m *mockRunStore) ListRecent(_ context.Context, limit int) ([]model.Run, error) {
	m.limitSeen = limit
	return m.runs, m.err
}

type mockRunner struct {
	run    model.Run
	err    error
	opSeen model.Operation
	ctxErr error
}

func (m *mockRunner) Run(ctx context.Context, op model.Operation) (model.Run, error) {
	m.opSeen = op
	m.ctxErr = ctx.Err()
	return m.run, m.err
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(_ context.Context) error { return m.err }

// --- Test helpers ---

var (
	testTime    = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	testTimeStr = "2026-02-10T12:00:00Z"
)

type deps struct {
	records *mockRecordStore
	runs    *mockRunStore
	runner  *mockRunner
	pinger  mockPinger
}

func newDeps() *deps {
	return &deps{
		records: &mockRecordStore{},
		runs:    &mockRunStore{},
		runner:  &mockRunner{},
	}
}

func testMessages() application.Messages {
	return application.Messages{
		Warning:  "Inactive for **{{days}}** days.",
		Closing:  "Closed after {{days}} days.",
		Reprieve: "Reprieved.",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupRouter(d *deps) http.Handler {
	h := httphandler.NewHandler(d.records, d.runs, d.runner, d.pinger, testMessages(), 20, discardLogger())
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("reaper_runs_total 1\n"))
	})
	return httphandler.NewRouter(h, metrics, discardLogger())
}

func do(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	err := json.NewDecoder(rec.Body).Decode(v)
	require.NoError(t, err)
}

func warnedRecord(repo string, number int) model.Record {
	warned := testTime
	return model.Record{
		RepoFullName:    repo,
		Number:          number,
		Status:          model.RecordStatusWarned,
		WarningPostedAt: &warned,
		LastCheckedAt:   testTime,
	}
}

// --- Tests ---

func TestHealth(t *testing.T) {
	d := newDeps()
	rec := do(t, setupRouter(d), http.MethodGet, "/api/v1/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body httphandler.HealthResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body.Status)
	assert.NotEmpty(t, body.Time)
	assert.Empty(t, body.Error)
}

func TestHealth_StoreUnavailable(t *testing.T) {
	d := newDeps()
	d.pinger = mockPinger{err: errors.New("connection refused")}
	rec := do(t, setupRouter(d), http.MethodGet, "/api/v1/health")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body httphandler.HealthResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "connection refused", body.Error)
}

func TestListRecords(t *testing.T) {
	tests := []struct {
		name       string
		store      *mockRecordStore
		wantStatus int
		wantLen    int
	}{
		{
			name:       "empty list",
			store:      &mockRecordStore{},
			wantStatus: http.StatusOK,
			wantLen:    0,
		},
		{
			name: "two records",
			store: &mockRecordStore{records: []model.Record{
				warnedRecord("octo/app", 1),
				warnedRecord("octo/app", 2),
			}},
			wantStatus: http.StatusOK,
			wantLen:    2,
		},
		{
			name:       "store error",
			store:      &mockRecordStore{err: errors.New("db down")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := newDeps()
			d.records = tc.store
			rec := do(t, setupRouter(d), http.MethodGet, "/api/v1/records")

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus != http.StatusOK {
				return
			}

			var body []httphandler.RecordResponse
			decodeJSON(t, rec, &body)
			assert.Len(t, body, tc.wantLen)
		})
	}
}

func TestListRecords_Fields(t *testing.T) {
	d := newDeps()
	d.records.records = []model.Record{warnedRecord("octo/app", 7)}
	rec := do(t, setupRouter(d), http.MethodGet, "/api/v1/records")

	require.Equal(t, http.StatusOK, rec.Code)
	var body []map[string]any
	decodeJSON(t, rec, &body)
	require.Len(t, body, 1)

	r := body[0]
	assert.Equal(t, "octo/app#7", r["key"])
	assert.Equal(t, "octo/app", r["repository"])
	assert.Equal(t, float64(7), r["number"])
	assert.Equal(t, "WARNED", r["status"])
	assert.Equal(t, testTimeStr, r["warning_posted_at"])
	assert.Nil(t, r["executed_at"])
	assert.Equal(t, testTimeStr, r["last_checked_at"])
}

func TestListRecords_StatusFilter(t *testing.T) {
	d := newDeps()
	d.records.records = []model.Record{warnedRecord("octo/app", 1)}
	rec := do(t, setupRouter(d), http.MethodGet, "/api/v1/records?status=warned")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.RecordStatusWarned, d.records.statusSeen)
}

func TestListRecords_InvalidStatus(t *testing.T) {
	d := newDeps()
	rec := do(t, setupRouter(d), http.MethodGet, "/api/v1/records?status=zombie")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Contains(t, body["error"], "ZOMBIE")
}

func TestGetRecord(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		store      *mockRecordStore
		wantStatus int
	}{
		{
			name:       "found",
			path:       "/api/v1/records/octo/app/7",
			store:      &mockRecordStore{record: func() *model.Record { r := warnedRecord("octo/app", 7); return &r }()},
			wantStatus: http.StatusOK,
		},
		{
			name:       "not found",
			path:       "/api/v1/records/octo/app/7",
			store:      &mockRecordStore{},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid number",
			path:       "/api/v1/records/octo/app/abc",
			store:      &mockRecordStore{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "zero number",
			path:       "/api/v1/records/octo/app/0",
			store:      &mockRecordStore{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store error",
			path:       "/api/v1/records/octo/app/7",
			store:      &mockRecordStore{err: errors.New("db down")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := newDeps()
			d.records = tc.store
			rec := do(t, setupRouter(d), http.MethodGet, tc.path)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusOK {
				var body httphandler.RecordResponse
				decodeJSON(t, rec, &body)
				assert.Equal(t, "octo/app#7", body.Key)
			}
		})
	}
}

func TestListRuns(t *testing.T) {
	d := newDeps()
	d.runs.runs = []model.Run{{
		ID:         "run-1",
		Operation:  model.OperationExecute,
		StartedAt:  testTime,
		FinishedAt: testTime.Add(1500 * time.Millisecond),
		Summary:    model.RunSummary{Candidates: 3, Executed: 1, Reactivated: 1, Skipped: 1},
	}}
	rec := do(t, setupRouter(d), http.MethodGet, "/api/v1/runs")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, d.runs.limitSeen)

	var body []httphandler.RunResponse
	decodeJSON(t, rec, &body)
	require.Len(t, body, 1)
	assert.Equal(t, "run-1", body[0].ID)
	assert.Equal(t, "execute", body[0].Operation)
	assert.Equal(t, testTimeStr, body[0].StartedAt)
	assert.Equal(t, int64(1500), body[0].DurationMS)
	assert.True(t, body[0].Succeeded)
	assert.Equal(t, 1, body[0].Summary.Executed)
	assert.Equal(t, 1, body[0].Summary.Reactivated)
}

func TestListRuns_Limit(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
	}{
		{name: "explicit", query: "?limit=5", wantStatus: http.StatusOK, wantLimit: 5},
		{name: "capped", query: "?limit=5000", wantStatus: http.StatusOK, wantLimit: 200},
		{name: "zero", query: "?limit=0", wantStatus: http.StatusBadRequest},
		{name: "not a number", query: "?limit=many", wantStatus: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := newDeps()
			rec := do(t, setupRouter(d), http.MethodGet, "/api/v1/runs"+tc.query)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, tc.wantLimit, d.runs.limitSeen)
			}
		})
	}
}

func TestListRuns_NoHistoryStore(t *testing.T) {
	d := newDeps()
	h := httphandler.NewHandler(d.records, nil, d.runner, d.pinger, testMessages(), 20, discardLogger())
	router := httphandler.NewRouter(h, nil, discardLogger())

	rec := do(t, router, http.MethodGet, "/api/v1/runs")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListRuns_StoreError(t *testing.T) {
	d := newDeps()
	d.runs.err = errors.New("db down")
	rec := do(t, setupRouter(d), http.MethodGet, "/api/v1/runs")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTriggerRun(t *testing.T) {
	d := newDeps()
	d.runner.run = model.Run{
		ID:         "run-2",
		Operation:  model.OperationWarn,
		StartedAt:  testTime,
		FinishedAt: testTime.Add(time.Second),
		Summary:    model.RunSummary{Candidates: 2, Warned: 2},
	}
	rec := do(t, setupRouter(d), http.MethodPost, "/api/v1/runs/warn")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.OperationWarn, d.runner.opSeen)
	require.NoError(t, d.runner.ctxErr)

	var body httphandler.RunResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "run-2", body.ID)
	assert.Equal(t, 2, body.Summary.Warned)
}

func TestTriggerRun_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		runErr     error
		wantStatus int
	}{
		{
			name:       "unknown operation",
			path:       "/api/v1/runs/purge",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "already running",
			path:       "/api/v1/runs/execute",
			runErr:     application.ErrRunInProgress,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "operation failed",
			path:       "/api/v1/runs/execute",
			runErr:     errors.New("github unavailable"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := newDeps()
			d.runner.err = tc.runErr
			if tc.runErr != nil {
				d.runner.run = model.Run{ID: "run-3", Operation: model.OperationExecute, Error: tc.runErr.Error()}
			}
			rec := do(t, setupRouter(d), http.MethodPost, tc.path)

			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestTriggerRun_FailureReturnsRun(t *testing.T) {
	d := newDeps()
	d.runner.err = errors.New("github unavailable")
	d.runner.run = model.Run{ID: "run-4", Operation: model.OperationExecute, Error: "github unavailable"}
	rec := do(t, setupRouter(d), http.MethodPost, "/api/v1/runs/execute")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body httphandler.RunResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "run-4", body.ID)
	assert.False(t, body.Succeeded)
	assert.Equal(t, "github unavailable", body.Error)
}

func TestTriggerRun_GetNotAllowed(t *testing.T) {
	d := newDeps()
	rec := do(t, setupRouter(d), http.MethodGet, "/api/v1/runs/warn")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, d.runner.opSeen)
}

func TestPreviewTemplates(t *testing.T) {
	d := newDeps()
	rec := do(t, setupRouter(d), http.MethodGet, "/api/v1/templates")

	require.Equal(t, http.StatusOK, rec.Code)
	var body httphandler.TemplatesResponse
	decodeJSON(t, rec, &body)

	assert.Equal(t, 20, body.Days)
	require.Len(t, body.Templates, 3)

	warning := body.Templates[0]
	assert.Equal(t, "warning", warning.Name)
	assert.Equal(t, "Inactive for **{{days}}** days.", warning.Raw)
	assert.Equal(t, "Inactive for **20** days.", warning.Rendered)
	assert.Equal(t, "<p>Inactive for <strong>20</strong> days.</p>\n", warning.HTML)

	assert.Equal(t, "closing", body.Templates[1].Name)
	assert.Equal(t, "Closed after 20 days.", body.Templates[1].Rendered)
	assert.Equal(t, "reprieve", body.Templates[2].Name)
	assert.Equal(t, "Reprieved.", body.Templates[2].Rendered)
}

func TestPreviewTemplates_Days(t *testing.T) {
	d := newDeps()
	rec := do(t, setupRouter(d), http.MethodGet, "/api/v1/templates?days=42")

	require.Equal(t, http.StatusOK, rec.Code)
	var body httphandler.TemplatesResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, 42, body.Days)
	assert.Equal(t, "Closed after 42 days.", body.Templates[1].Rendered)
}

func TestPreviewTemplates_InvalidDays(t *testing.T) {
	d := newDeps()
	rec := do(t, setupRouter(d), http.MethodGet, "/api/v1/templates?days=-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	d := newDeps()
	rec := do(t, setupRouter(d), http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "reaper_runs_total"))
}

func TestRecoveryMiddleware(t *testing.T) {
	d := newDeps()
	h := httphandler.NewHandler(panicStore{d.records}, d.runs, d.runner, d.pinger, testMessages(), 20, discardLogger())
	router := httphandler.NewRouter(h, nil, discardLogger())

	rec := do(t, router, http.MethodGet, "/api/v1/records")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Equal(t, "internal server error", body["error"])
}

type panicStore struct{ *mockRecordStore }

func (panicStore) ListAll(_ context.Context) ([]model.Record, error) {
	panic("store exploded")
}
