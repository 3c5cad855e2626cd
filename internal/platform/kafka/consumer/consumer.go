package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes one message. A nil return commits the message; an error
// is retried with backoff until it succeeds or the consumer stops.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer reads a set of topics as a member of a consumer group and commits
// offsets only after the handler accepted every record of a poll.
type Consumer struct {
	client      *kgo.Client
	handler     Handler
	logger      *slog.Logger
	maxInterval time.Duration
}

// Config describes the group membership.
type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
}

// New joins the consumer group.
func New(cfg Config, handler Handler, logger *slog.Logger, opts ...kgo.Opt) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.GroupID == "" || len(cfg.Topics) == 0 {
		return nil, errors.New("kafka consumer requires brokers, group and topics")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Consumer{
		client:      client,
		handler:     handler,
		logger:      logger,
		maxInterval: 30 * time.Second,
	}, nil
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch failed",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var stopped bool
		fetches.EachRecord(func(r *kgo.Record) {
			if stopped {
				return
			}
			if err := c.handle(ctx, toMessage(r)); err != nil {
				stopped = true
			}
		})
		if stopped {
			return nil
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.WarnContext(ctx, "kafka offset commit failed", "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg *Message) error {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = c.maxInterval
	b.MaxElapsedTime = 0

	return backoff.RetryNotify(func() error {
		return c.handler.Handle(ctx, msg)
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "audit message handling failed, retrying",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"retry_in", wait,
			"error", err,
		)
	})
}

// Close leaves the group and closes the client.
func (c *Consumer) Close() {
	c.client.Close()
}

func toMessage(r *kgo.Record) *Message {
	return &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Timestamp: r.Timestamp,
	}
}
