package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"compliance/internal/platform/kafka/producer"
	audit "compliance/pkg/platform/audit"
)

// Topics audit entries are published to, one per category.
const (
	TopicCompliance = "audit.compliance"
	TopicSecurity   = "audit.security"
)

// Topics lists every audit topic.
func Topics() []string {
	return []string{TopicCompliance, TopicSecurity}
}

// TopicFor routes an entry by its action's category.
func TopicFor(entry audit.Entry) string {
	if entry.Action.Category() == audit.CategorySecurity {
		return TopicSecurity
	}
	return TopicCompliance
}

// MessagePublisher is satisfied by *producer.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msgs ...producer.Message) error
}

// KafkaSink encodes entries as JSON records keyed by entry ID.
type KafkaSink struct {
	publisher MessagePublisher
}

func NewKafkaSink(publisher MessagePublisher) *KafkaSink {
	return &KafkaSink{publisher: publisher}
}

// Publish implements Sink.
func (s *KafkaSink) Publish(ctx context.Context, entries []audit.Entry) error {
	msgs := make([]producer.Message, 0, len(entries))
	for _, e := range entries {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal audit entry %s: %w", e.ID, err)
		}
		msgs = append(msgs, producer.Message{
			Topic: TopicFor(e),
			Key:   []byte(e.ID),
			Value: value,
			Headers: map[string]string{
				"action": string(e.Action),
			},
		})
	}
	return s.publisher.Publish(ctx, msgs...)
}
