// Package httphandler is the HTTP driving adapter: a read-only view of the
// record store and run history, manual run triggers and template previews.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ericfisherdev/prreaper/internal/application"
	"github.com/ericfisherdev/prreaper/internal/domain/model"
	"github.com/ericfisherdev/prreaper/internal/domain/port/driven"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// OperationRunner triggers a tracked reaper run.
type OperationRunner interface {
	Run(ctx context.Context, op model.Operation) (model.Run, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	records  driven.RecordStore
	runs     driven.RunStore // May be nil.
	runner   OperationRunner
	store    Pinger
	messages application.Messages
	days     int // Default {{days}} for template previews.
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. previewDays is
// the default value substituted into template previews.
func NewHandler(
	records driven.RecordStore,
	runs driven.RunStore,
	runner OperationRunner,
	store Pinger,
	messages application.Messages,
	previewDays int,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		records:  records,
		runs:     runs,
		runner:   runner,
		store:    store,
		messages: messages,
		days:     previewDays,
		logger:   logger,
	}
}

// NewRouter creates an http.Handler with all routes registered and wrapped
// with request ID, logging and recovery middleware. metrics may be nil.
func NewRouter(h *Handler, metrics http.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery innermost so panics are caught before logging.
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(logger))
	r.Use(recoveryMiddleware(logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/records", h.ListRecords)
		r.Get("/records/{owner}/{repo}/{number}", h.GetRecord)
		r.Get("/runs", h.ListRuns)
		r.Post("/runs/{operation}", h.TriggerRun)
		r.Get("/templates", h.PreviewTemplates)
	})

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	return r
}

// Health reports whether the record store is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Time: now, Error: err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: now})
}

// ListRecords returns all records, or those in ?status= when given.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	var (
		records []model.Record
		err     error
	)

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, parseErr := model.ParseRecordStatus(strings.ToUpper(raw))
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		records, err = h.records.FindByStatus(r.Context(), status)
	} else {
		records, err = h.records.ListAll(r.Context())
	}
	if err != nil {
		h.logger.Error("failed to list records", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toRecordResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRecord returns the record for one pull request.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	repo := chi.URLParam(r, "repo")

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		writeError(w, http.StatusBadRequest, "invalid PR number")
		return
	}

	repoFullName := owner + "/" + repo

	record, err := h.records.FindByKey(r.Context(), repoFullName, number)
	if err != nil {
		h.logger.Error("failed to get record", "repo", repoFullName, "pr", number, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if record == nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(*record))
}

// ListRuns returns recent run history, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}

	resp := []RunResponse{}
	if h.runs == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}

	writeJSON(w, http.StatusOK, resp)
}

// TriggerRun runs an operation synchronously and returns its history entry.
// The run is detached from the request context so a client disconnect does
// not abort it halfway through.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	op, err := model.ParseOperation(chi.URLParam(r, "operation"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	run, err := h.runner.Run(context.WithoutCancel(r.Context()), op)
	switch {
	case errors.Is(err, application.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrUnknownOperation):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, toRunResponse(run))
	default:
		writeJSON(w, http.StatusOK, toRunResponse(run))
	}
}

// PreviewTemplates shows each configured message with ?days= substituted
// (default: the warning threshold) and as the HTML GitHub would display.
func (h *Handler) PreviewTemplates(w http.ResponseWriter, r *http.Request) {
	days := h.days
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		days = n
	}

	named := []struct{ name, tmpl string }{
		{"warning", h.messages.Warning},
		{"closing", h.messages.Closing},
		{"reprieve", h.messages.Reprieve},
	}

	resp := TemplatesResponse{Days: days, Templates: make([]TemplateResponse, 0, len(named))}
	for _, n := range named {
		rendered := application.RenderMessage(n.tmpl, days)
		resp.Templates = append(resp.Templates, TemplateResponse{
			Name:     n.name,
			Raw:      n.tmpl,
			Rendered: rendered,
			HTML:     RenderMarkdown(rendered),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
