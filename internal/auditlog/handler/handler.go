package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"compliance/internal/auditlog/export"
	"compliance/internal/gdpr"
	"compliance/internal/platform/metrics"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/audit"
	"compliance/pkg/platform/httputil"
	"compliance/pkg/platform/middleware/request"
	listutil "compliance/pkg/platform/strings"
)

//go:generate mockgen -source=handler.go -destination=mocks/service_mock.go -package=mocks Service

// Service defines the audit log operations exposed over HTTP.
type Service interface {
	LogGDPRRequest(ctx context.Context, req gdpr.DataSubjectRequest, outcome gdpr.RequestOutcome) (audit.Entry, error)
	LogSOXActivity(ctx context.Context, activity string, details audit.SOXActivityDetails) (audit.Entry, error)
	LogSecurityEvent(ctx context.Context, event string, details audit.SecurityEventDetails) (audit.Entry, error)
	LogComplianceViolation(ctx context.Context, violation string, details audit.ViolationDetails) (audit.Entry, error)
	Entries(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
	Report(ctx context.Context, start, end time.Time) (audit.Report, error)
	Verify(ctx context.Context) error
}

// Handler handles audit log endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
	metrics *metrics.Metrics
}

// New creates a new audit Handler.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		metrics: metrics,
	}
}

// Register registers the audit write routes. Reads are registered by
// RegisterReads so the router can rate limit intake separately.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/audit/gdpr-requests", h.handleLogGDPRRequest)
	r.Post("/v1/audit/sox-activities", h.handleLogSOXActivity)
	r.Post("/v1/audit/security-events", h.handleLogSecurityEvent)
	r.Post("/v1/audit/violations", h.handleLogViolation)
}

// RegisterReads registers listing, reporting and verification.
func (h *Handler) RegisterReads(r chi.Router) {
	r.Get("/v1/audit/entries", h.handleListEntries)
	r.Get("/v1/audit/report", h.handleReport)
	r.Get("/v1/audit/verify", h.handleVerify)
}

type gdprRequestBody struct {
	Request gdpr.DataSubjectRequest `json:"request"`
	Outcome gdpr.RequestOutcome     `json:"outcome"`
}

type soxActivityBody struct {
	Activity   string            `json:"activity"`
	Control    string            `json:"control,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type securityEventBody struct {
	Event      string            `json:"event"`
	Severity   audit.Severity    `json:"severity,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type violationBody struct {
	Violation  string            `json:"violation"`
	Regulation string            `json:"regulation,omitempty"`
	Severity   audit.Severity    `json:"severity,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// entriesResponse wraps listings so the envelope can grow without breaking clients.
type entriesResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}

func (h *Handler) handleLogGDPRRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body gdprRequestBody
	if !h.decode(w, r, &body) {
		return
	}

	result := gdpr.ValidateDataSubjectRequest(body.Request)
	if h.metrics != nil {
		h.metrics.ObserveValidation("data_subject_request", result.Valid)
	}
	if !result.Valid {
		h.logger.InfoContext(ctx, "rejected gdpr request audit",
			"request_id", request.GetRequestID(ctx),
			"errors", len(result.Errors),
		)
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	if strings.TrimSpace(body.Outcome.Status) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "outcome status is required"))
		return
	}

	entry, err := h.service.LogGDPRRequest(ctx, body.Request, body.Outcome)
	h.respondEntry(w, r, entry, err)
}

func (h *Handler) handleLogSOXActivity(w http.ResponseWriter, r *http.Request) {
	var body soxActivityBody
	if !h.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Activity) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "activity is required"))
		return
	}

	entry, err := h.service.LogSOXActivity(r.Context(), body.Activity, audit.SOXActivityDetails{
		Control:    body.Control,
		Actor:      body.Actor,
		Attributes: body.Attributes,
	})
	h.respondEntry(w, r, entry, err)
}

func (h *Handler) handleLogSecurityEvent(w http.ResponseWriter, r *http.Request) {
	var body securityEventBody
	if !h.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Event) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "event is required"))
		return
	}
	if !validSeverity(body.Severity) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "severity must be one of: info, warning, critical"))
		return
	}

	// Client IP and User-Agent are filled from the request context by the service.
	entry, err := h.service.LogSecurityEvent(r.Context(), body.Event, audit.SecurityEventDetails{
		Severity:   body.Severity,
		Attributes: body.Attributes,
	})
	h.respondEntry(w, r, entry, err)
}

func (h *Handler) handleLogViolation(w http.ResponseWriter, r *http.Request) {
	var body violationBody
	if !h.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Violation) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "violation is required"))
		return
	}
	if !validSeverity(body.Severity) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "severity must be one of: info, warning, critical"))
		return
	}

	entry, err := h.service.LogComplianceViolation(r.Context(), body.Violation, audit.ViolationDetails{
		Regulation: body.Regulation,
		Severity:   body.Severity,
		Attributes: body.Attributes,
	})
	h.respondEntry(w, r, entry, err)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	from, err := parseTimeParam(q.Get("from"), "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseTimeParam(q.Get("to"), "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actions, err := parseActions(q["action"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.Entries(ctx, audit.Filter{From: from, To: to, Actions: actions})
	if err != nil {
		h.logFailure(ctx, "failed to list audit entries", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entriesResponse{Entries: entries, Count: len(entries)})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	from, err := parseTimeParam(q.Get("from"), "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseTimeParam(q.Get("to"), "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if from == nil || to == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "from and to are required"))
		return
	}

	report, err := h.service.Report(ctx, *from, *to)
	if err != nil {
		h.logFailure(ctx, "failed to build audit report", err)
		httputil.WriteError(w, err)
		return
	}

	if !wantsPDF(r) {
		httputil.WriteJSON(w, http.StatusOK, report)
		return
	}
	var buf bytes.Buffer
	if err := export.RenderPDF(&buf, report); err != nil {
		h.logFailure(ctx, "failed to render audit report", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render report"))
		return
	}
	w.Header().Set("Content-Type", export.ContentTypePDF)
	w.Header().Set("Content-Disposition", `attachment; filename="audit-report.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Verify(ctx); err != nil {
		h.logFailure(ctx, "audit chain verification failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "intact"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(r, dst); err != nil {
		h.logger.WarnContext(r.Context(), "invalid audit request",
			"request_id", request.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return false
	}
	return true
}

func (h *Handler) respondEntry(w http.ResponseWriter, r *http.Request, entry audit.Entry, err error) {
	if err != nil {
		h.logFailure(r.Context(), "failed to record audit entry", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.ToHTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", request.GetRequestID(ctx),
		"error", err.Error(),
	)
}

func parseTimeParam(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, name+" must be an RFC 3339 timestamp")
	}
	return &t, nil
}

// parseActions accepts repeated and comma separated action parameters.
func parseActions(raw []string) ([]audit.Action, error) {
	var actions []audit.Action
	for _, part := range listutil.SplitList(raw...) {
		a, err := audit.ParseAction(part)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unknown action "+part)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func validSeverity(s audit.Severity) bool {
	switch s {
	case "", audit.SeverityInfo, audit.SeverityWarning, audit.SeverityCritical:
		return true
	}
	return false
}

func wantsPDF(r *http.Request) bool {
	if r.URL.Query().Get("format") == "pdf" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), export.ContentTypePDF)
}
