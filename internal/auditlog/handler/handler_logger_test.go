package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliance/internal/auditlog"
	"compliance/pkg/platform/audit"
	"compliance/pkg/platform/audit/store/memory"
	"compliance/pkg/testutil"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func TestSecurityEventThroughLogger(t *testing.T) {
	store := memory.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	New(auditlog.NewLogger(store, auditlog.WithLogger(logger)), logger, nil).Register(router)
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	testutil.Given(t, "a security event posted by a browser client", func(t *testing.T) {
		req := testutil.JSONRequest(t, http.MethodPost, "/v1/audit/security-events", map[string]any{
			"event": "failed-login",
		})
		req = testutil.WithClient(req, "203.0.113.9", chromeUA)
		req = testutil.WithRequestTime(req, at)
		req = testutil.WithRequestID(req, "req-abc")

		rr := testutil.Serve(router, req)

		testutil.Then(t, "the stored entry carries the client and the request time", func(t *testing.T) {
			require.Equal(t, http.StatusCreated, rr.Code)
			got := testutil.DecodeBody[audit.Entry](t, rr)
			assert.Equal(t, int64(1), got.Seq)
			assert.True(t, got.Timestamp.Equal(at))
			assert.Equal(t, audit.SystemSubject, got.DataSubjectID)

			details, ok := got.Details.(audit.SecurityEventDetails)
			require.True(t, ok)
			assert.Equal(t, "failed-login", details.Event)
			assert.Equal(t, audit.SeverityInfo, details.Severity)
			assert.Equal(t, "203.0.113.9", details.IP)
			assert.Contains(t, details.Browser, "Chrome")
			assert.NotEmpty(t, details.OS)
			assert.Equal(t, 1, store.Len())
		})
	})
}
