// Package consumer materialises streamed audit entries into an audit store.
package consumer

import (
	"context"
	"log/slog"
	"sort"

	"compliance/internal/platform/kafka/consumer"
)

// TopicHandler handles the messages of one topic.
type TopicHandler interface {
	Handle(ctx context.Context, msg *consumer.Message) error
}

// Router dispatches by topic. It satisfies consumer.Handler.
type Router struct {
	handlers map[string]TopicHandler
	fallback TopicHandler
	logger   *slog.Logger
}

// NewRouter creates a router. fallback may be nil, in which case messages on
// unregistered topics are logged and committed.
func NewRouter(logger *slog.Logger, fallback TopicHandler) *Router {
	return &Router{
		handlers: make(map[string]TopicHandler),
		fallback: fallback,
		logger:   logger,
	}
}

// Register binds handler to topic, replacing any earlier binding.
func (r *Router) Register(topic string, handler TopicHandler) {
	r.handlers[topic] = handler
}

// Topics lists the registered topics in sorted order, for subscribing.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Handle implements consumer.Handler.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	if h, ok := r.handlers[msg.Topic]; ok {
		return h.Handle(ctx, msg)
	}
	if r.fallback != nil {
		return r.fallback.Handle(ctx, msg)
	}
	r.logger.WarnContext(ctx, "audit message on unrouted topic dropped",
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
	)
	return nil
}
