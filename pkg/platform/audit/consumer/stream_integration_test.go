//go:build integration

package consumer_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	kafkaconsumer "compliance/internal/platform/kafka/consumer"
	"compliance/internal/platform/kafka/producer"
	audit "compliance/pkg/platform/audit"
	auditconsumer "compliance/pkg/platform/audit/consumer"
	"compliance/pkg/platform/audit/publishers/stream"
	"compliance/pkg/platform/audit/store/memory"
	"compliance/pkg/testutil/containers"
)

type StreamIntegrationSuite struct {
	suite.Suite
	brokers  []string
	producer *producer.Producer
	logger   *slog.Logger
}

func TestStreamIntegrationSuite(t *testing.T) {
	suite.Run(t, new(StreamIntegrationSuite))
}

func (s *StreamIntegrationSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	p, err := producer.New(s.brokers, s.logger)
	s.Require().NoError(err)
	s.producer = p

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(s.producer.EnsureTopics(ctx, 1, 1, stream.Topics()...))
	// second call must tolerate existing topics
	s.Require().NoError(s.producer.EnsureTopics(ctx, 1, 1, stream.Topics()...))
}

func (s *StreamIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *StreamIntegrationSuite) TestForwardedEntriesAreMaterialised() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	source := memory.NewInMemoryStore()
	var sealed []audit.Entry
	for _, d := range []audit.Details{
		audit.GDPRRequestDetails{RequestID: "req-1", Outcome: "fulfilled"},
		audit.SOXActivityDetails{Activity: "quarterly-review"},
		audit.SecurityEventDetails{Event: "failed-login", Severity: audit.SeverityWarning},
	} {
		subject := audit.SystemSubject
		if d.Action() == audit.ActionGDPRRequestProcessed {
			subject = "user@example.com"
		}
		e, err := source.Append(ctx, audit.Entry{
			ID:            uuid.NewString(),
			Timestamp:     time.Now(),
			Action:        d.Action(),
			DataSubjectID: subject,
			Details:       d,
		})
		s.Require().NoError(err)
		sealed = append(sealed, e)
	}

	forwarder := stream.NewForwarder(stream.NewKafkaSink(s.producer), stream.WithLogger(s.logger))
	for _, e := range sealed {
		forwarder.Enqueue(e)
	}
	s.Require().NoError(forwarder.Drain(ctx))
	s.Zero(forwarder.Pending())

	replica := memory.NewInMemoryStore()
	router := auditconsumer.NewRouter(s.logger, nil)
	router.Register(stream.TopicCompliance, auditconsumer.NewComplianceHandler(replica, s.logger))
	router.Register(stream.TopicSecurity, auditconsumer.NewSecurityHandler(replica, s.logger))

	kc, err := kafkaconsumer.New(kafkaconsumer.Config{
		Brokers: s.brokers,
		GroupID: "materializer-" + uuid.NewString(),
		Topics:  router.Topics(),
	}, router, s.logger)
	s.Require().NoError(err)
	defer kc.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- kc.Run(runCtx) }()

	s.Require().Eventually(func() bool {
		return replica.Len() == len(sealed)
	}, 45*time.Second, 200*time.Millisecond)
	stop()
	s.Require().NoError(<-done)

	chain, err := replica.ListChain(ctx)
	s.Require().NoError(err)
	require.NoError(s.T(), audit.VerifyChain(chain))
	for i, e := range chain {
		s.Equal(sealed[i].ID, e.ID)
		s.Equal(sealed[i].Hash, e.Hash)
	}
}
