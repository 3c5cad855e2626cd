// Package compliance provides the fail-closed audit writer.
//
// Publisher writes entries synchronously: the caller blocks until the store
// has sealed and persisted the entry. If the write fails an error is returned
// and the calling operation must decide whether it may proceed.
package compliance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	dErrors "compliance/pkg/domain-errors"
	audit "compliance/pkg/platform/audit"
)

// Publisher persists entries with fail-closed semantics.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a compliance publisher over store.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates and persists entry, returning it as sealed by the store.
// Any failure is returned as a CodeAuditWriteFailure domain error.
func (p *Publisher) Emit(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	start := p.now()

	if err := validate(entry); err != nil {
		p.recordFailure(ctx, entry, err)
		return audit.Entry{}, dErrors.Wrap(err, dErrors.CodeAuditWriteFailure, "audit entry rejected")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = start
	}

	sealed, err := p.store.Append(ctx, entry)
	if err != nil {
		p.recordFailure(ctx, entry, err)
		return audit.Entry{}, dErrors.Wrap(err, dErrors.CodeAuditWriteFailure, "audit entry could not be persisted")
	}

	if p.metrics != nil {
		p.metrics.observeWrite(sealed.Action, p.now().Sub(start))
	}
	return sealed, nil
}

func (p *Publisher) recordFailure(ctx context.Context, entry audit.Entry, err error) {
	if p.metrics != nil {
		p.metrics.incWriteFailure(entry.Action)
	}
	if p.logger != nil {
		p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
			"action", entry.Action,
			"entry_id", entry.ID,
			"data_subject_id", entry.DataSubjectID,
			"error", err,
		)
	}
}

func validate(entry audit.Entry) error {
	switch {
	case entry.ID == "":
		return errors.New("audit entry requires ID")
	case !entry.Action.IsValid():
		return errors.New("audit entry requires a known Action")
	case entry.DataSubjectID == "" && entry.Action != audit.ActionGDPRRequestProcessed:
		return errors.New("audit entry requires DataSubjectID")
	case entry.Details == nil:
		return errors.New("audit entry requires Details")
	case entry.Details.Action() != entry.Action:
		return errors.New("audit entry details do not match its Action")
	}
	return nil
}
