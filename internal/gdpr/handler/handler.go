package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"compliance/internal/gdpr"
	"compliance/internal/platform/metrics"
	"compliance/pkg/platform/httputil"
	"compliance/pkg/platform/middleware/request"
)

// Handler exposes the GDPR validation rules over HTTP.
type Handler struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a new validation Handler.
func New(logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{logger: logger, metrics: metrics}
}

// Register registers the validation routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/gdpr/requests/validate", h.handleValidateRequest)
	r.Post("/v1/gdpr/consents/validate", h.handleValidateConsent)
	r.Post("/v1/gdpr/identity-verifications/validate", h.handleValidateIdentity)
}

func (h *Handler) handleValidateRequest(w http.ResponseWriter, r *http.Request) {
	var req gdpr.DataSubjectRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, "data_subject_request", gdpr.ValidateDataSubjectRequest(req))
}

func (h *Handler) handleValidateConsent(w http.ResponseWriter, r *http.Request) {
	var update gdpr.ConsentUpdate
	if !h.decode(w, r, &update) {
		return
	}
	h.respond(w, r, "consent_update", gdpr.ValidateConsentUpdate(update))
}

func (h *Handler) handleValidateIdentity(w http.ResponseWriter, r *http.Request) {
	var v gdpr.IdentityVerification
	if !h.decode(w, r, &v) {
		return
	}
	h.respond(w, r, "identity_verification", gdpr.ValidateIdentityVerification(v))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(r, dst); err != nil {
		h.logger.WarnContext(r.Context(), "invalid validation request",
			"request_id", request.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return false
	}
	return true
}

// respond writes 200 for a valid subject and 422 with the full error list otherwise.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, kind string, result gdpr.ValidationResult) {
	if h.metrics != nil {
		h.metrics.ObserveValidation(kind, result.Valid)
	}
	if !result.Valid {
		h.logger.InfoContext(r.Context(), "validation rejected",
			"request_id", request.GetRequestID(r.Context()),
			"kind", kind,
			"errors", len(result.Errors),
		)
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
