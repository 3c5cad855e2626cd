package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"compliance/internal/platform/kafka/consumer"
	audit "compliance/pkg/platform/audit"
)

// ComplianceHandler materialises entries from the compliance topic.
// Validation is strict: anything unusable is logged as CRITICAL.
type ComplianceHandler struct {
	store  audit.Importer
	logger *slog.Logger
}

// NewComplianceHandler creates a compliance topic handler.
func NewComplianceHandler(store audit.Importer, logger *slog.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		store:  store,
		logger: logger,
	}
}

// Handle imports one compliance entry.
func (h *ComplianceHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	entry, err := decodeEntry(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "CRITICAL: unusable compliance audit message",
			"key", string(msg.Key),
			"offset", msg.Offset,
			"error", err,
		)
		// Return nil to commit - malformed messages should not block
		return nil
	}

	if entry.Action.Category() != audit.CategoryCompliance {
		h.logger.ErrorContext(ctx, "CRITICAL: non-compliance entry on compliance topic",
			"entry_id", entry.ID,
			"action", entry.Action,
		)
		return nil
	}
	if entry.DataSubjectID == "" {
		h.logger.ErrorContext(ctx, "CRITICAL: compliance entry missing data subject",
			"entry_id", entry.ID,
			"action", entry.Action,
		)
		return nil
	}

	if err := h.store.Import(ctx, entry); err != nil {
		h.logger.ErrorContext(ctx, "failed to store compliance entry",
			"entry_id", entry.ID,
			"action", entry.Action,
			"error", err,
		)
		return fmt.Errorf("store compliance entry: %w", err)
	}

	h.logger.DebugContext(ctx, "stored compliance entry",
		"entry_id", entry.ID,
		"seq", entry.Seq,
		"action", entry.Action,
	)
	return nil
}
