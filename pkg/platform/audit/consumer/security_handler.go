package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"compliance/internal/platform/kafka/consumer"
	audit "compliance/pkg/platform/audit"
)

// SecurityHandler materialises entries from the security topic. Bad messages
// are skipped with a warning.
type SecurityHandler struct {
	store  audit.Importer
	logger *slog.Logger
}

// NewSecurityHandler creates a security topic handler.
func NewSecurityHandler(store audit.Importer, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{
		store:  store,
		logger: logger,
	}
}

// Handle imports one security entry.
func (h *SecurityHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	entry, err := decodeEntry(msg)
	if err != nil {
		h.logger.WarnContext(ctx, "skipping unusable security audit message",
			"key", string(msg.Key),
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}

	if err := h.store.Import(ctx, entry); err != nil {
		h.logger.ErrorContext(ctx, "failed to store security entry",
			"entry_id", entry.ID,
			"error", err,
		)
		return fmt.Errorf("store security entry: %w", err)
	}

	severity := audit.SeverityInfo
	if d, ok := entry.Details.(audit.SecurityEventDetails); ok && d.Severity != "" {
		severity = d.Severity
	}
	h.logger.DebugContext(ctx, "stored security entry",
		"entry_id", entry.ID,
		"seq", entry.Seq,
		"severity", severity,
	)
	return nil
}
