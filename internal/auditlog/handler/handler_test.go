package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"compliance/internal/auditlog/handler/mocks"
	"compliance/internal/gdpr"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/audit"
	"compliance/pkg/testutil"
)

type AuditHandlerSuite struct {
	suite.Suite
	now time.Time
}

func TestAuditHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuditHandlerSuite))
}

func (s *AuditHandlerSuite) SetupSuite() {
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func (s *AuditHandlerSuite) newHandler(t *testing.T) (*mocks.MockService, chi.Router) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockService(ctrl)
	router := chi.NewRouter()
	h := New(mockService, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	h.Register(router)
	h.RegisterReads(router)
	return mockService, router
}

func (s *AuditHandlerSuite) validRequest() gdpr.DataSubjectRequest {
	return gdpr.DataSubjectRequest{
		ID:                 "req-1",
		DataSubjectID:      "user@example.com",
		Type:               gdpr.RequestTypeAccess,
		VerificationMethod: gdpr.VerificationEmail,
		VerificationCode:   "123456",
		Timestamp:          s.now,
	}
}

func (s *AuditHandlerSuite) TestLogGDPRRequest() {
	s.T().Run("valid request is recorded - 201", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		recorded := audit.Entry{
			ID:            "entry-1",
			Seq:           1,
			Timestamp:     s.now,
			Action:        audit.ActionGDPRRequestProcessed,
			DataSubjectID: "user@example.com",
			RequestType:   "ACCESS",
			Details:       audit.GDPRRequestDetails{RequestID: "req-1", Outcome: "fulfilled"},
		}
		mockService.EXPECT().LogGDPRRequest(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req gdpr.DataSubjectRequest, outcome gdpr.RequestOutcome) (audit.Entry, error) {
				assert.Equal(t, "user@example.com", req.DataSubjectID)
				assert.Equal(t, "fulfilled", outcome.Status)
				assert.Equal(t, int64(42), outcome.ProcessingTimeMs)
				return recorded, nil
			})

		rr := testutil.Serve(router, testutil.JSONRequest(t, http.MethodPost, "/v1/audit/gdpr-requests", map[string]any{
			"request": s.validRequest(),
			"outcome": gdpr.RequestOutcome{RequestID: "req-1", Status: "fulfilled", ProcessingTimeMs: 42},
		}))

		require.Equal(t, http.StatusCreated, rr.Code)
		got := testutil.DecodeBody[audit.Entry](t, rr)
		assert.Equal(t, "entry-1", got.ID)
		assert.Equal(t, audit.ActionGDPRRequestProcessed, got.Action)
		details, ok := got.Details.(audit.GDPRRequestDetails)
		require.True(t, ok)
		assert.Equal(t, "fulfilled", details.Outcome)
	})

	s.T().Run("invalid request returns 422 and is not recorded", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().LogGDPRRequest(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		req := s.validRequest()
		req.Type = gdpr.RequestTypeRectification
		req.VerificationCode = ""

		rr := testutil.Serve(router, testutil.JSONRequest(t, http.MethodPost, "/v1/audit/gdpr-requests", map[string]any{
			"request": req,
			"outcome": gdpr.RequestOutcome{Status: "rejected"},
		}))

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		got := testutil.DecodeBody[gdpr.ValidationResult](t, rr)
		assert.False(t, got.Valid)
		assert.Equal(t, []string{
			"Verification code is required for EMAIL and SMS verification",
			"Request data is required for RECTIFICATION requests",
		}, got.Errors)
	})

	s.T().Run("missing outcome status returns 400", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().LogGDPRRequest(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.Serve(router, testutil.JSONRequest(t, http.MethodPost, "/v1/audit/gdpr-requests", map[string]any{
			"request": s.validRequest(),
		}))

		testutil.AssertError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.T().Run("audit write failure returns 503", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().LogGDPRRequest(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(audit.Entry{}, dErrors.Wrap(errors.New("db down"), dErrors.CodeAuditWriteFailure, "audit write failed"))

		rr := testutil.Serve(router, testutil.JSONRequest(t, http.MethodPost, "/v1/audit/gdpr-requests", map[string]any{
			"request": s.validRequest(),
			"outcome": gdpr.RequestOutcome{Status: "fulfilled"},
		}))

		testutil.AssertError(t, rr, http.StatusServiceUnavailable, string(dErrors.CodeAuditWriteFailure))
	})

	s.T().Run("malformed json returns 400", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().LogGDPRRequest(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.Serve(router, testutil.RawRequest(http.MethodPost, "/v1/audit/gdpr-requests", "{bad-json"))

		testutil.AssertError(t, rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
}

func (s *AuditHandlerSuite) TestLogSystemEvents() {
	s.T().Run("sox activity passes typed details", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().LogSOXActivity(gomock.Any(), "quarterly-review", audit.SOXActivityDetails{
			Control: "ITGC-4",
			Actor:   "cfo",
		}).Return(audit.Entry{ID: "sox-1", Action: audit.ActionSOXActivity, DataSubjectID: audit.SystemSubject}, nil)

		rr := testutil.Serve(router, testutil.JSONRequest(t, http.MethodPost, "/v1/audit/sox-activities", map[string]any{
			"activity": "quarterly-review",
			"control":  "ITGC-4",
			"actor":    "cfo",
		}))

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	s.T().Run("sox activity without name returns 400", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().LogSOXActivity(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.Serve(router, testutil.JSONRequest(t, http.MethodPost, "/v1/audit/sox-activities", map[string]any{
			"actor": "cfo",
		}))

		testutil.AssertError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.T().Run("security event with unknown severity returns 400", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().LogSecurityEvent(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.Serve(router, testutil.JSONRequest(t, http.MethodPost, "/v1/audit/security-events", map[string]any{
			"event":    "failed-login",
			"severity": "apocalyptic",
		}))

		testutil.AssertError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.T().Run("security event is recorded", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().LogSecurityEvent(gomock.Any(), "failed-login", audit.SecurityEventDetails{
			Severity: audit.SeverityWarning,
		}).Return(audit.Entry{ID: "sec-1", Action: audit.ActionSecurityEvent, DataSubjectID: audit.SystemSubject}, nil)

		rr := testutil.Serve(router, testutil.JSONRequest(t, http.MethodPost, "/v1/audit/security-events", map[string]any{
			"event":    "failed-login",
			"severity": "warning",
		}))

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	s.T().Run("violation is recorded", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().LogComplianceViolation(gomock.Any(), "retention-exceeded", audit.ViolationDetails{
			Regulation: "GDPR Art. 5(1)(e)",
		}).Return(audit.Entry{ID: "v-1", Action: audit.ActionComplianceViolation, DataSubjectID: audit.SystemSubject}, nil)

		rr := testutil.Serve(router, testutil.JSONRequest(t, http.MethodPost, "/v1/audit/violations", map[string]any{
			"violation":  "retention-exceeded",
			"regulation": "GDPR Art. 5(1)(e)",
		}))

		assert.Equal(t, http.StatusCreated, rr.Code)
	})
}

func (s *AuditHandlerSuite) TestListEntries() {
	s.T().Run("bounds and actions are parsed into the filter", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		from := s.now.Add(-time.Hour)
		to := s.now
		mockService.EXPECT().Entries(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, f audit.Filter) ([]audit.Entry, error) {
				require.NotNil(t, f.From)
				require.NotNil(t, f.To)
				assert.True(t, f.From.Equal(from))
				assert.True(t, f.To.Equal(to))
				assert.Equal(t, []audit.Action{audit.ActionSecurityEvent, audit.ActionSOXActivity}, f.Actions)
				return []audit.Entry{{ID: "e1", Action: audit.ActionSecurityEvent}}, nil
			})

		path := "/v1/audit/entries?from=" + from.Format(time.RFC3339) + "&to=" + to.Format(time.RFC3339) +
			"&action=SECURITY_EVENT,SOX_ACTIVITY"
		rr := testutil.Serve(router, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, http.StatusOK, rr.Code)
		got := testutil.DecodeBody[entriesResponse](t, rr)
		assert.Equal(t, 1, got.Count)
		assert.Equal(t, "e1", got.Entries[0].ID)
	})

	s.T().Run("no bounds lists everything", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().Entries(gomock.Any(), audit.Filter{}).Return([]audit.Entry{}, nil)

		rr := testutil.Serve(router, httptest.NewRequest(http.MethodGet, "/v1/audit/entries", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"entries":[],"count":0}`, rr.Body.String())
	})

	s.T().Run("bad timestamp returns 400", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().Entries(gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.Serve(router, httptest.NewRequest(http.MethodGet, "/v1/audit/entries?from=yesterday", nil))

		testutil.AssertError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.T().Run("unknown action returns 400", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().Entries(gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.Serve(router, httptest.NewRequest(http.MethodGet, "/v1/audit/entries?action=LOGIN", nil))

		testutil.AssertError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})
}

func (s *AuditHandlerSuite) TestReport() {
	window := "?from=" + s.now.Add(-time.Hour).Format(time.RFC3339) + "&to=" + s.now.Format(time.RFC3339)
	report := audit.BuildReport(s.now.Add(-time.Hour), s.now, []audit.Entry{
		{ID: "v1", Seq: 1, Timestamp: s.now.Add(-time.Minute), Action: audit.ActionComplianceViolation, DataSubjectID: audit.SystemSubject},
	})

	s.T().Run("json report", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().Report(gomock.Any(), gomock.Any(), gomock.Any()).Return(report, nil)

		rr := testutil.Serve(router, httptest.NewRequest(http.MethodGet, "/v1/audit/report"+window, nil))

		require.Equal(t, http.StatusOK, rr.Code)
		got := testutil.DecodeBody[map[string]any](t, rr)
		assert.InDelta(t, 1, got["totalEntries"], 0)
		assert.InDelta(t, 1, got["complianceViolations"], 0)
	})

	s.T().Run("pdf report on format parameter", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().Report(gomock.Any(), gomock.Any(), gomock.Any()).Return(report, nil)

		rr := testutil.Serve(router, httptest.NewRequest(http.MethodGet, "/v1/audit/report"+window+"&format=pdf", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))
	})

	s.T().Run("pdf report on accept header", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().Report(gomock.Any(), gomock.Any(), gomock.Any()).Return(report, nil)
		req := httptest.NewRequest(http.MethodGet, "/v1/audit/report"+window, nil)
		req.Header.Set("Accept", "application/pdf")

		rr := testutil.Serve(router, req)

		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	})

	s.T().Run("missing bound returns 400", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().Report(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.Serve(router, httptest.NewRequest(http.MethodGet, "/v1/audit/report?from="+s.now.Format(time.RFC3339), nil))

		testutil.AssertError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})
}

func (s *AuditHandlerSuite) TestVerify() {
	s.T().Run("intact chain", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().Verify(gomock.Any()).Return(nil)

		rr := testutil.Serve(router, httptest.NewRequest(http.MethodGet, "/v1/audit/verify", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"intact"}`, rr.Body.String())
	})

	s.T().Run("broken chain returns 500", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().Verify(gomock.Any()).
			Return(dErrors.New(dErrors.CodeInvariantViolation, "audit chain verification failed"))

		rr := testutil.Serve(router, httptest.NewRequest(http.MethodGet, "/v1/audit/verify", nil))

		testutil.AssertError(t, rr, http.StatusInternalServerError, string(dErrors.CodeInvariantViolation))
	})
}
