package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
	Error  string `json:"error,omitempty"`
}

// RecordResponse is the JSON representation of a tracking record.
type RecordResponse struct {
	Key             string  `json:"key"`
	Repository      string  `json:"repository"`
	Number          int     `json:"number"`
	Status          string  `json:"status"`
	WarningPostedAt *string `json:"warning_posted_at"`
	ExecutedAt      *string `json:"executed_at"`
	LastCheckedAt   string  `json:"last_checked_at"`
}

// SummaryResponse is the JSON representation of a run's counts.
type SummaryResponse struct {
	Candidates  int `json:"candidates"`
	Warned      int `json:"warned"`
	Executed    int `json:"executed"`
	Reactivated int `json:"reactivated"`
	Immunized   int `json:"immunized"`
	Skipped     int `json:"skipped"`
}

// RunResponse is the JSON representation of a run history entry.
type RunResponse struct {
	ID         string          `json:"id"`
	Operation  string          `json:"operation"`
	StartedAt  string          `json:"started_at"`
	FinishedAt string          `json:"finished_at"`
	DurationMS int64           `json:"duration_ms"`
	Succeeded  bool            `json:"succeeded"`
	Error      string          `json:"error,omitempty"`
	Summary    SummaryResponse `json:"summary"`
}

// TemplateResponse shows one message template raw, rendered and as HTML.
type TemplateResponse struct {
	Name     string `json:"name"`
	Raw      string `json:"raw"`
	Rendered string `json:"rendered"`
	HTML     string `json:"html"`
}

// TemplatesResponse is the body of the template preview endpoint.
type TemplatesResponse struct {
	Days      int                `json:"days"`
	Templates []TemplateResponse `json:"templates"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// toRecordResponse converts a domain Record to its JSON representation.
func toRecordResponse(r model.Record) RecordResponse {
	return RecordResponse{
		Key:             r.Key(),
		Repository:      r.RepoFullName,
		Number:          r.Number,
		Status:          string(r.Status),
		WarningPostedAt: formatTimePtr(r.WarningPostedAt),
		ExecutedAt:      formatTimePtr(r.ExecutedAt),
		LastCheckedAt:   formatTime(r.LastCheckedAt),
	}
}

// toRunResponse converts a domain Run to its JSON representation.
func toRunResponse(run model.Run) RunResponse {
	s := run.Summary
	return RunResponse{
		ID:         run.ID,
		Operation:  string(run.Operation),
		StartedAt:  formatTime(run.StartedAt),
		FinishedAt: formatTime(run.FinishedAt),
		DurationMS: run.Duration().Milliseconds(),
		Succeeded:  run.Succeeded(),
		Error:      run.Error,
		Summary: SummaryResponse{
			Candidates:  s.Candidates,
			Warned:      s.Warned,
			Executed:    s.Executed,
			Reactivated: s.Reactivated,
			Immunized:   s.Immunized,
			Skipped:     s.Skipped,
		},
	}
}
