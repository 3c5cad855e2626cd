package consumer

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"compliance/internal/platform/kafka/consumer"
	audit "compliance/pkg/platform/audit"
)

// decodeEntry parses and verifies a streamed entry. Errors mean the message
// can never be stored and should be committed and skipped.
func decodeEntry(msg *consumer.Message) (audit.Entry, error) {
	if _, err := uuid.Parse(string(msg.Key)); err != nil {
		return audit.Entry{}, fmt.Errorf("parse entry key: %w", err)
	}

	var entry audit.Entry
	if err := json.Unmarshal(msg.Value, &entry); err != nil {
		return audit.Entry{}, fmt.Errorf("unmarshal entry: %w", err)
	}
	if entry.ID != string(msg.Key) {
		return audit.Entry{}, fmt.Errorf("entry id %q does not match key %q", entry.ID, msg.Key)
	}
	if err := audit.VerifyEntry(entry); err != nil {
		return audit.Entry{}, err
	}
	return entry, nil
}
