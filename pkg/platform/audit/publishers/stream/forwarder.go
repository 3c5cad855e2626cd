// Package stream forwards persisted audit entries to Kafka asynchronously.
//
// The synchronous write path never waits on the broker: entries are queued in
// a bounded ring buffer and a background Run loop publishes them in batches.
// A batch that exhausts its retries goes back to the front of the buffer and
// is sent again once the circuit breaker lets traffic through. When the buffer
// is full the oldest entry is dropped; the store stays the system of record.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	audit "compliance/pkg/platform/audit"
)

// Sink receives batches of entries.
type Sink interface {
	Publish(ctx context.Context, entries []audit.Entry) error
}

// Forwarder drains a RingBuffer into a Sink.
type Forwarder struct {
	sink    Sink
	buffer  *RingBuffer
	breaker *CircuitBreaker
	logger  *slog.Logger
	metrics *Metrics

	batchSize     int
	flushInterval time.Duration
	retryInitial  time.Duration
	maxRetries    uint64

	wake   chan struct{}
	sendMu sync.Mutex
}

// Option configures the Forwarder.
type Option func(*Forwarder)

// WithLogger sets a logger for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

// WithBufferSize sets the ring buffer capacity.
func WithBufferSize(n int) Option {
	return func(f *Forwarder) {
		f.buffer = NewRingBuffer(n)
	}
}

// WithBatchSize sets the maximum number of entries per publish.
func WithBatchSize(n int) Option {
	return func(f *Forwarder) {
		if n > 0 {
			f.batchSize = n
		}
	}
}

// WithFlushInterval sets how often Run flushes without being woken.
func WithFlushInterval(d time.Duration) Option {
	return func(f *Forwarder) {
		if d > 0 {
			f.flushInterval = d
		}
	}
}

// WithRetry sets the initial backoff and retry count for one batch.
func WithRetry(initial time.Duration, maxRetries uint64) Option {
	return func(f *Forwarder) {
		f.retryInitial = initial
		f.maxRetries = maxRetries
	}
}

// WithCircuitBreaker replaces the default breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(f *Forwarder) {
		f.breaker = cb
	}
}

// NewForwarder creates a forwarder publishing to sink.
func NewForwarder(sink Sink, opts ...Option) *Forwarder {
	f := &Forwarder{
		sink:          sink,
		buffer:        NewRingBuffer(1024),
		breaker:       NewCircuitBreaker(5, 30*time.Second),
		logger:        slog.Default(),
		batchSize:     100,
		flushInterval: time.Second,
		retryInitial:  100 * time.Millisecond,
		maxRetries:    3,
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Enqueue queues an entry for publishing. It never blocks.
func (f *Forwarder) Enqueue(entry audit.Entry) {
	dropped := f.buffer.Enqueue(entry)
	if f.metrics != nil {
		f.metrics.Enqueued.Inc()
		if dropped {
			f.metrics.Dropped.Inc()
		}
		f.metrics.BufferDepth.Set(float64(f.buffer.Len()))
	}
	if dropped {
		f.logger.Warn("audit stream buffer full, dropped oldest entry")
	}
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued entries.
func (f *Forwarder) Pending() int {
	return f.buffer.Len()
}

// Run publishes queued entries until ctx is cancelled. Entries still queued
// at that point are left for Drain.
func (f *Forwarder) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.wake:
			f.flush(ctx)
		case <-ticker.C:
			f.flush(ctx)
		}
	}
}

// Drain publishes everything queued, ignoring the circuit breaker, until the
// buffer is empty or ctx expires. It returns ctx.Err() if entries remain, or
// the publish error if a batch exhausts its retries.
func (f *Forwarder) Drain(ctx context.Context) error {
	f.sendMu.Lock()
	defer f.sendMu.Unlock()

	for f.buffer.Len() > 0 {
		if err := ctx.Err(); err != nil {
			f.logger.Error("audit stream drain incomplete",
				"remaining", f.buffer.Len(),
				"error", err,
			)
			return err
		}
		if err := f.sendBatch(ctx, f.buffer.DequeueBatch(f.batchSize)); err != nil {
			return fmt.Errorf("drain audit stream (%d remaining): %w", f.buffer.Len(), err)
		}
	}
	return nil
}

func (f *Forwarder) flush(ctx context.Context) {
	f.sendMu.Lock()
	defer f.sendMu.Unlock()

	for f.buffer.Len() > 0 && ctx.Err() == nil {
		if !f.breaker.Allow() {
			return
		}
		if err := f.sendBatch(ctx, f.buffer.DequeueBatch(f.batchSize)); err != nil {
			return
		}
	}
}

// sendBatch publishes batch with retries. On failure the batch is requeued.
func (f *Forwarder) sendBatch(ctx context.Context, batch []audit.Entry) error {
	if len(batch) == 0 {
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retryInitial
	err := backoff.Retry(func() error {
		return f.sink.Publish(ctx, batch)
	}, backoff.WithContext(backoff.WithMaxRetries(b, f.maxRetries), ctx))

	if err != nil {
		open := f.breaker.RecordFailure()
		dropped := f.buffer.Requeue(batch)
		if f.metrics != nil {
			f.metrics.PublishFailures.Add(float64(len(batch)))
			f.metrics.Dropped.Add(float64(dropped))
			f.metrics.BufferDepth.Set(float64(f.buffer.Len()))
			f.metrics.setCircuitBreakerState(open)
		}
		f.logger.ErrorContext(ctx, "audit stream publish failed, batch requeued",
			"entries", len(batch),
			"first_seq", batch[0].Seq,
			"dropped", dropped,
			"circuit_open", open,
			"error", err,
		)
		return err
	}

	f.breaker.RecordSuccess()
	if f.metrics != nil {
		f.metrics.Published.Add(float64(len(batch)))
		f.metrics.BufferDepth.Set(float64(f.buffer.Len()))
		f.metrics.setCircuitBreakerState(false)
	}
	return nil
}
