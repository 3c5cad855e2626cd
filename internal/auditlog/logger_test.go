package auditlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"compliance/internal/gdpr"
	dErrors "compliance/pkg/domain-errors"
	audit "compliance/pkg/platform/audit"
	"compliance/pkg/platform/audit/publishers/compliance"
	"compliance/pkg/platform/audit/store/memory"
	"compliance/pkg/requestcontext"
)

type brokenStore struct{}

func (brokenStore) Append(context.Context, audit.Entry) (audit.Entry, error) {
	return audit.Entry{}, errors.New("connection reset")
}

func (brokenStore) List(context.Context, audit.Filter) ([]audit.Entry, error) {
	return nil, errors.New("connection reset")
}

type fakeStream struct {
	mu      sync.Mutex
	entries []audit.Entry
	drained bool
}

func (f *fakeStream) Enqueue(e audit.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *fakeStream) Drain(context.Context) error {
	f.drained = true
	return nil
}

type LoggerSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.InMemoryStore
	logs    *bytes.Buffer
	clock   time.Time
	nextID  int
	metrics *compliance.Metrics
	logger  *Logger
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerSuite))
}

func (s *LoggerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewInMemoryStore()
	s.logs = &bytes.Buffer{}
	s.clock = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.nextID = 0
	s.metrics = compliance.NewMetrics(prometheus.NewRegistry())
	s.logger = s.newLogger(s.store)
}

func (s *LoggerSuite) newLogger(store audit.Store, opts ...Option) *Logger {
	base := []Option{
		WithLogger(slog.New(slog.NewJSONHandler(s.logs, nil))),
		WithMetrics(s.metrics),
		WithClock(func(context.Context) time.Time {
			s.clock = s.clock.Add(time.Second)
			return s.clock
		}),
		WithIDGenerator(func() string {
			s.nextID++
			return fmt.Sprintf("entry-%d", s.nextID)
		}),
	}
	return NewLogger(store, append(base, opts...)...)
}

func accessRequest() gdpr.DataSubjectRequest {
	return gdpr.DataSubjectRequest{
		ID:                 "req-1",
		DataSubjectID:      "user@example.com",
		Type:               gdpr.RequestTypeAccess,
		VerificationMethod: gdpr.VerificationEmail,
		VerificationCode:   "123456",
		Timestamp:          time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (s *LoggerSuite) TestLogGDPRRequest() {
	entry, err := s.logger.LogGDPRRequest(s.ctx, accessRequest(), gdpr.RequestOutcome{
		Status:           "fulfilled",
		ProcessingTimeMs: 42,
		Data:             map[string]any{"orders": 3},
	})
	s.Require().NoError(err)

	s.Equal(audit.ActionGDPRRequestProcessed, entry.Action)
	s.Equal("user@example.com", entry.DataSubjectID)
	s.Equal("ACCESS", entry.RequestType)
	s.Equal(audit.GDPRRequestDetails{
		RequestID:          "req-1",
		VerificationMethod: "EMAIL",
		Outcome:            "fulfilled",
		ProcessingTimeMs:   42,
		DataProvided:       true,
	}, entry.Details)
	s.Equal(int64(1), entry.Seq)
	s.Contains(s.logs.String(), "audit entry recorded")
}

func (s *LoggerSuite) TestLogGDPRRequestWithoutSubject() {
	req := gdpr.DataSubjectRequest{ID: "req-9", Type: gdpr.RequestTypeAccess}
	entry, err := s.logger.LogGDPRRequest(s.ctx, req, gdpr.RequestOutcome{Status: "rejected", Reason: "unverified"})
	s.Require().NoError(err)

	s.Empty(entry.DataSubjectID)
	s.Equal("rejected", entry.Details.(audit.GDPRRequestDetails).Outcome)
	s.Equal(1, s.store.Len())
}

func (s *LoggerSuite) TestSystemEventsUseSystemSubject() {
	sox, err := s.logger.LogSOXActivity(s.ctx, "quarterly-review", audit.SOXActivityDetails{Control: "C-7"})
	s.Require().NoError(err)
	violation, err := s.logger.LogComplianceViolation(s.ctx, "retention-exceeded", audit.ViolationDetails{Regulation: "GDPR"})
	s.Require().NoError(err)

	s.Equal(audit.SystemSubject, sox.DataSubjectID)
	s.Equal(audit.SOXActivityDetails{Activity: "quarterly-review", Control: "C-7"}, sox.Details)
	s.Equal(audit.SystemSubject, violation.DataSubjectID)
	s.Equal(audit.SeverityWarning, violation.Details.(audit.ViolationDetails).Severity)
}

func (s *LoggerSuite) TestSecurityEventEnrichedFromRequestContext() {
	ctx := requestcontext.WithClientMetadata(s.ctx, "203.0.113.7",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	entry, err := s.logger.LogSecurityEvent(ctx, "failed-login", audit.SecurityEventDetails{})
	s.Require().NoError(err)

	d := entry.Details.(audit.SecurityEventDetails)
	s.Equal("failed-login", d.Event)
	s.Equal(audit.SeverityInfo, d.Severity)
	s.Equal("203.0.113.7", d.IP)
	s.Contains(d.Browser, "Chrome")
	s.NotEmpty(d.OS)
}

func (s *LoggerSuite) TestEntriesNewestFirstAndCount() {
	for range 3 {
		_, err := s.logger.LogSOXActivity(s.ctx, "reconcile", audit.SOXActivityDetails{})
		s.Require().NoError(err)
	}
	_, err := s.logger.LogSecurityEvent(s.ctx, "failed-login", audit.SecurityEventDetails{})
	s.Require().NoError(err)

	entries, err := s.logger.Entries(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Require().Len(entries, 4)
	s.Equal("entry-4", entries[0].ID)
	s.Equal("entry-1", entries[3].ID)
}

func (s *LoggerSuite) TestEntriesRejectsInvertedWindow() {
	from := s.clock.Add(time.Hour)
	to := s.clock
	_, err := s.logger.Entries(s.ctx, audit.Filter{From: &from, To: &to})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *LoggerSuite) TestEndToEndReport() {
	start := s.clock
	_, err := s.logger.LogGDPRRequest(s.ctx, accessRequest(), gdpr.RequestOutcome{Status: "fulfilled"})
	s.Require().NoError(err)
	_, err = s.logger.LogSOXActivity(s.ctx, "quarterly-review", audit.SOXActivityDetails{})
	s.Require().NoError(err)
	_, err = s.logger.LogSecurityEvent(s.ctx, "failed-login", audit.SecurityEventDetails{})
	s.Require().NoError(err)
	end := s.clock

	report, err := s.logger.Report(s.ctx, start, end)
	s.Require().NoError(err)

	s.Equal(3, report.TotalEntries)
	s.Equal(1, report.GDPRRequests)
	s.Equal(1, report.SOXActivities)
	s.Equal(1, report.SecurityEvents)
	s.Equal(0, report.ComplianceViolations)
	s.Equal(map[string]int{"user@example.com": 1, audit.SystemSubject: 2}, report.EntriesByDataSubject)
	s.Len(report.Entries, 3)

	sum := 0
	for _, n := range report.EntriesByAction {
		sum += n
	}
	s.Equal(report.TotalEntries, sum)
}

func (s *LoggerSuite) TestReportWindowAtNanosecondPrecision() {
	s.clock = time.Date(2024, 5, 1, 9, 0, 0, 1500, time.UTC)
	loggedAt := s.clock.Add(time.Second)

	entry, err := s.logger.LogSOXActivity(s.ctx, "reconcile", audit.SOXActivityDetails{})
	s.Require().NoError(err)
	s.True(entry.Timestamp.Before(loggedAt))

	report, err := s.logger.Report(s.ctx, loggedAt, loggedAt)
	s.Require().NoError(err)
	s.Equal(1, report.TotalEntries)
}

func (s *LoggerSuite) TestReportAroundWallClockLogCall() {
	for range 200 {
		l := NewLogger(memory.NewInMemoryStore(), WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
		start := time.Now()
		_, err := l.LogSOXActivity(s.ctx, "reconcile", audit.SOXActivityDetails{})
		s.Require().NoError(err)
		end := time.Now()

		report, err := l.Report(s.ctx, start, end)
		s.Require().NoError(err)
		s.Require().Equal(1, report.TotalEntries)
	}
}

func (s *LoggerSuite) TestReportEmptyWindow() {
	_, err := s.logger.LogSOXActivity(s.ctx, "reconcile", audit.SOXActivityDetails{})
	s.Require().NoError(err)

	start := s.clock.Add(time.Hour)
	report, err := s.logger.Report(s.ctx, start, start.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(0, report.TotalEntries)
	s.Empty(report.Entries)
}

func (s *LoggerSuite) TestFailClosedReturnsAuditWriteFailure() {
	l := s.newLogger(brokenStore{})
	_, err := l.LogSOXActivity(s.ctx, "reconcile", audit.SOXActivityDetails{})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAuditWriteFailure))
	s.Contains(s.logs.String(), "CRITICAL: compliance audit failed")
}

func (s *LoggerSuite) TestFailOpenSwallowsWriteFailure() {
	l := s.newLogger(brokenStore{}, WithWritePolicy(FailOpen))
	entry, err := l.LogSOXActivity(s.ctx, "reconcile", audit.SOXActivityDetails{})

	s.Require().NoError(err)
	s.Equal("entry-1", entry.ID)
	s.Empty(entry.Hash)
	s.Contains(s.logs.String(), "fail-open")
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.WriteFailures.WithLabelValues(string(audit.ActionSOXActivity))))
}

func (s *LoggerSuite) TestStreamReceivesPersistedEntries() {
	stream := &fakeStream{}
	l := s.newLogger(s.store, WithStream(stream))

	_, err := l.LogSOXActivity(s.ctx, "reconcile", audit.SOXActivityDetails{})
	s.Require().NoError(err)
	s.Require().NoError(l.Close(s.ctx))

	s.Len(stream.entries, 1)
	s.NotEmpty(stream.entries[0].Hash)
	s.True(stream.drained)
}

func (s *LoggerSuite) TestVerify() {
	for range 5 {
		_, err := s.logger.LogSOXActivity(s.ctx, "reconcile", audit.SOXActivityDetails{})
		s.Require().NoError(err)
	}
	s.NoError(s.logger.Verify(s.ctx))

	unverifiable := s.newLogger(brokenStore{})
	s.True(dErrors.HasCode(unverifiable.Verify(s.ctx), dErrors.CodeUnavailable))
}

func (s *LoggerSuite) TestConcurrentLoggingKeepsEveryEntry() {
	l := NewLogger(s.store, WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	const n = 50

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.LogSecurityEvent(s.ctx, "failed-login", audit.SecurityEventDetails{})
			s.NoError(err)
		}()
	}
	wg.Wait()

	entries, err := l.Entries(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Len(entries, n)
	s.NoError(l.Verify(s.ctx))
}

func TestParseWritePolicy(t *testing.T) {
	p, ok := ParseWritePolicy("fail_open")
	assert.True(t, ok)
	assert.Equal(t, FailOpen, p)

	p, ok = ParseWritePolicy("")
	assert.True(t, ok)
	assert.Equal(t, FailClosed, p)

	_, ok = ParseWritePolicy("maybe")
	assert.False(t, ok)
}
