// Package auditlog records compliance events and answers time-window queries
// and reports over them.
package auditlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"compliance/internal/gdpr"
	dErrors "compliance/pkg/domain-errors"
	audit "compliance/pkg/platform/audit"
	"compliance/pkg/platform/audit/publishers/compliance"
	"compliance/pkg/requestcontext"
)

const tracerName = "compliance/internal/auditlog"

// WritePolicy decides what a failed append means for the caller.
type WritePolicy int

const (
	// FailClosed returns the write failure; the caller must not proceed.
	FailClosed WritePolicy = iota
	// FailOpen logs the failure and reports success to the caller.
	FailOpen
)

// ParseWritePolicy maps the configuration value to a WritePolicy.
func ParseWritePolicy(s string) (WritePolicy, bool) {
	switch s {
	case "fail_closed", "":
		return FailClosed, true
	case "fail_open":
		return FailOpen, true
	}
	return FailClosed, false
}

func (p WritePolicy) String() string {
	if p == FailOpen {
		return "fail_open"
	}
	return "fail_closed"
}

// Writer persists a single entry and returns it sealed.
type Writer interface {
	Emit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// Stream receives every persisted entry for asynchronous fan-out.
type Stream interface {
	Enqueue(entry audit.Entry)
	Drain(ctx context.Context) error
}

// Logger is the append-only compliance audit log. Construct one per process
// with NewLogger and share it; it is safe for concurrent use.
type Logger struct {
	store   audit.Store
	writer  Writer
	stream  Stream
	logger  *slog.Logger
	metrics *compliance.Metrics
	policy  WritePolicy
	now     func(ctx context.Context) time.Time
	newID   func() string
	tracer  trace.Tracer
}

// Option configures the Logger.
type Option func(*Logger)

// WithLogger sets the operational log sink.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		l.logger = logger
	}
}

// WithMetrics sets the write metrics collector.
func WithMetrics(m *compliance.Metrics) Option {
	return func(l *Logger) {
		l.metrics = m
	}
}

// WithWritePolicy sets the failure policy. The default is FailClosed.
func WithWritePolicy(p WritePolicy) Option {
	return func(l *Logger) {
		l.policy = p
	}
}

// WithStream fans persisted entries out to s.
func WithStream(s Stream) Option {
	return func(l *Logger) {
		l.stream = s
	}
}

// WithClock overrides the entry timestamp source.
func WithClock(now func(ctx context.Context) time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// WithIDGenerator overrides entry ID generation.
func WithIDGenerator(newID func() string) Option {
	return func(l *Logger) {
		l.newID = newID
	}
}

// WithWriter replaces the fail-closed publisher built over the store.
func WithWriter(w Writer) Option {
	return func(l *Logger) {
		l.writer = w
	}
}

// NewLogger creates a Logger over store.
func NewLogger(store audit.Store, opts ...Option) *Logger {
	l := &Logger{
		store:  store,
		logger: slog.Default(),
		policy: FailClosed,
		now:    requestcontext.Now,
		newID:  uuid.NewString,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.writer == nil {
		pubOpts := []compliance.Option{compliance.WithLogger(l.logger)}
		if l.metrics != nil {
			pubOpts = append(pubOpts, compliance.WithMetrics(l.metrics))
		}
		l.writer = compliance.New(store, pubOpts...)
	}
	return l
}

// LogGDPRRequest records the outcome of a processed data-subject request.
func (l *Logger) LogGDPRRequest(ctx context.Context, req gdpr.DataSubjectRequest, outcome gdpr.RequestOutcome) (audit.Entry, error) {
	requestID := outcome.RequestID
	if requestID == "" {
		requestID = req.ID
	}
	return l.record(ctx, req.DataSubjectID, string(req.Type), audit.GDPRRequestDetails{
		RequestID:          requestID,
		VerificationMethod: string(req.VerificationMethod),
		Outcome:            outcome.Status,
		ProcessingTimeMs:   outcome.ProcessingTimeMs,
		DataProvided:       outcome.DataProvided(),
		Reason:             outcome.Reason,
	})
}

// LogSOXActivity records a financial-controls activity.
func (l *Logger) LogSOXActivity(ctx context.Context, activity string, details audit.SOXActivityDetails) (audit.Entry, error) {
	details.Activity = activity
	return l.record(ctx, audit.SystemSubject, "", details)
}

// LogSecurityEvent records a security event. Client IP and User-Agent are
// taken from the request context when the caller leaves them empty.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, details audit.SecurityEventDetails) (audit.Entry, error) {
	details.Event = event
	if details.Severity == "" {
		details.Severity = audit.SeverityInfo
	}
	if details.IP == "" {
		details.IP = requestcontext.ClientIP(ctx)
	}
	if details.UserAgent == "" {
		details.UserAgent = requestcontext.UserAgent(ctx)
	}
	if details.UserAgent != "" && details.Browser == "" {
		ua := useragent.New(details.UserAgent)
		name, version := ua.Browser()
		if name != "" {
			details.Browser = joinNonEmpty(name, version)
		}
		details.OS = ua.OS()
	}
	return l.record(ctx, audit.SystemSubject, "", details)
}

// LogComplianceViolation records a detected compliance violation.
func (l *Logger) LogComplianceViolation(ctx context.Context, violation string, details audit.ViolationDetails) (audit.Entry, error) {
	details.Violation = violation
	if details.Severity == "" {
		details.Severity = audit.SeverityWarning
	}
	return l.record(ctx, audit.SystemSubject, "", details)
}

func (l *Logger) record(ctx context.Context, subject, requestType string, details audit.Details) (audit.Entry, error) {
	action := details.Action()
	ctx, span := l.tracer.Start(ctx, "auditlog.record",
		trace.WithAttributes(attribute.String("audit.action", string(action))),
	)
	defer span.End()

	entry := audit.Entry{
		ID:            l.newID(),
		Timestamp:     l.now(ctx),
		Action:        action,
		DataSubjectID: subject,
		RequestType:   requestType,
		Details:       details,
	}

	sealed, err := l.writer.Emit(ctx, entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit write failed")
		if l.policy == FailOpen {
			l.logger.ErrorContext(ctx, "audit write failed, continuing under fail-open policy",
				"action", action,
				"entry_id", entry.ID,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			return entry, nil
		}
		return audit.Entry{}, err
	}

	span.SetAttributes(attribute.Int64("audit.seq", sealed.Seq))
	l.logger.InfoContext(ctx, "audit entry recorded",
		"action", sealed.Action,
		"entry_id", sealed.ID,
		"seq", sealed.Seq,
		"data_subject_id", sealed.DataSubjectID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if l.stream != nil {
		l.stream.Enqueue(sealed)
	}
	return sealed, nil
}

// Entries returns entries inside filter, newest first. An empty window
// yields an empty slice.
func (l *Logger) Entries(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	ctx, span := l.tracer.Start(ctx, "auditlog.entries")
	defer span.End()

	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "from must not be after to")
	}
	entries, err := l.store.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit log unavailable")
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	span.SetAttributes(attribute.Int("audit.entries", len(entries)))
	return entries, nil
}

// Report summarises the window [start, end].
func (l *Logger) Report(ctx context.Context, start, end time.Time) (audit.Report, error) {
	if start.IsZero() || end.IsZero() {
		return audit.Report{}, dErrors.New(dErrors.CodeInvalidInput, "report requires start and end")
	}
	entries, err := l.Entries(ctx, audit.Filter{From: &start, To: &end})
	if err != nil {
		return audit.Report{}, err
	}
	return audit.BuildReport(start, end, entries), nil
}

// Verify checks the hash chain of the whole log.
func (l *Logger) Verify(ctx context.Context) error {
	ctx, span := l.tracer.Start(ctx, "auditlog.verify")
	defer span.End()

	lister, ok := l.store.(audit.ChainLister)
	if !ok {
		return dErrors.New(dErrors.CodeUnavailable, "audit store does not support verification")
	}
	chain, err := lister.ListChain(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "audit log unavailable")
	}
	if err := audit.VerifyChain(chain); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain broken")
		l.logger.ErrorContext(ctx, "CRITICAL: audit chain verification failed", "error", err)
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "audit chain verification failed")
	}
	span.SetAttributes(attribute.Int("audit.entries", len(chain)))
	return nil
}

// Close drains the stream, if any, within ctx.
func (l *Logger) Close(ctx context.Context) error {
	if l.stream == nil {
		return nil
	}
	return l.stream.Drain(ctx)
}

func joinNonEmpty(name, version string) string {
	if version == "" {
		return name
	}
	return name + " " + version
}
