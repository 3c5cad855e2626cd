// Package storetest holds the behaviour every audit.Store backend must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	audit "compliance/pkg/platform/audit"
	"compliance/pkg/platform/sentinel"
)

// Backend is a store that can also replay streamed entries and return its
// full chain.
type Backend interface {
	audit.Store
	audit.Importer
	ListChain(ctx context.Context) ([]audit.Entry, error)
}

// ContractSuite is embedded by backend suites. Reset must leave an empty log.
type ContractSuite struct {
	suite.Suite
	Store Backend
	Reset func(ctx context.Context) error
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func (s *ContractSuite) SetupTest() {
	s.Require().NoError(s.Reset(context.Background()))
}

func (s *ContractSuite) append(at time.Time, action audit.Action) audit.Entry {
	var details audit.Details
	switch action {
	case audit.ActionSecurityEvent:
		details = audit.SecurityEventDetails{Event: "failed-login", Severity: audit.SeverityWarning}
	case audit.ActionGDPRRequestProcessed:
		details = audit.GDPRRequestDetails{RequestID: "req-1", Outcome: "fulfilled", DataProvided: true}
	default:
		details = audit.SOXActivityDetails{Activity: "quarterly-review", Attributes: map[string]string{"control": "C-7"}}
	}
	e, err := s.Store.Append(context.Background(), audit.Entry{
		ID:            uuid.NewString(),
		Timestamp:     at,
		Action:        action,
		DataSubjectID: audit.SystemSubject,
		Details:       details,
	})
	s.Require().NoError(err)
	return e
}

func (s *ContractSuite) TestAppendAndListNewestFirst() {
	ctx := context.Background()
	for i := range 4 {
		s.append(base.Add(time.Duration(i)*time.Minute), audit.ActionSOXActivity)
	}

	entries, err := s.Store.List(ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Require().Len(entries, 4)
	for i := 1; i < len(entries); i++ {
		s.True(entries[i-1].Timestamp.After(entries[i].Timestamp))
	}
	s.Equal(audit.SOXActivityDetails{Activity: "quarterly-review", Attributes: map[string]string{"control": "C-7"}}, entries[0].Details)
}

func (s *ContractSuite) TestInclusiveBoundsAndEmptyWindow() {
	ctx := context.Background()
	first := s.append(base, audit.ActionSOXActivity)
	s.append(base.Add(time.Minute), audit.ActionSecurityEvent)
	last := s.append(base.Add(2*time.Minute), audit.ActionGDPRRequestProcessed)

	from, to := first.Timestamp, last.Timestamp
	entries, err := s.Store.List(ctx, audit.Filter{From: &from, To: &to})
	s.Require().NoError(err)
	s.Len(entries, 3)

	empty := base.Add(time.Hour)
	entries, err = s.Store.List(ctx, audit.Filter{From: &empty})
	s.Require().NoError(err)
	s.NotNil(entries)
	s.Empty(entries)

	entries, err = s.Store.List(ctx, audit.Filter{Actions: []audit.Action{audit.ActionSecurityEvent}})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionSecurityEvent, entries[0].Action)
}

func (s *ContractSuite) TestEqualTimestampsLaterInsertionFirst() {
	a := s.append(base, audit.ActionSOXActivity)
	b := s.append(base, audit.ActionSOXActivity)

	entries, err := s.Store.List(context.Background(), audit.Filter{})
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(b.ID, entries[0].ID)
	s.Equal(a.ID, entries[1].ID)
}

func (s *ContractSuite) TestConcurrentAppendsFormOneChain() {
	const writers = 6
	const perWriter = 10

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range perWriter {
				_, err := s.Store.Append(context.Background(), audit.Entry{
					ID:            uuid.NewString(),
					Timestamp:     base.Add(time.Duration(w*perWriter+i) * time.Second),
					Action:        audit.ActionSOXActivity,
					DataSubjectID: fmt.Sprintf("writer-%d", w),
					Details:       audit.SOXActivityDetails{Activity: "reconcile"},
				})
				s.NoError(err)
			}
		}(w)
	}
	wg.Wait()

	chain, err := s.Store.ListChain(context.Background())
	s.Require().NoError(err)
	s.Require().Len(chain, writers*perWriter)
	s.NoError(audit.VerifyChain(chain))
}

func (s *ContractSuite) TestImportIsIdempotent() {
	ctx := context.Background()
	sealed, err := audit.Seal(audit.Entry{
		ID:            uuid.NewString(),
		Timestamp:     base,
		Action:        audit.ActionSecurityEvent,
		DataSubjectID: audit.SystemSubject,
		Details:       audit.SecurityEventDetails{Event: "failed-login"},
	}, 41, "")
	s.Require().NoError(err)

	s.Require().NoError(s.Store.Import(ctx, sealed))
	s.Require().NoError(s.Store.Import(ctx, sealed))

	entries, err := s.Store.List(ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(sealed.Hash, entries[0].Hash)

	tampered := sealed
	tampered.ID = uuid.NewString()
	s.ErrorIs(s.Store.Import(ctx, tampered), sentinel.ErrTampered)
}

func (s *ContractSuite) TestSubMicrosecondBoundsKeepEntry() {
	ctx := context.Background()
	logged := base.Add(1500 * time.Nanosecond)
	e := s.append(logged, audit.ActionSOXActivity)
	s.True(e.Timestamp.Before(logged), "sealed timestamp is truncated to microseconds")

	from, to := logged, logged.Add(400*time.Nanosecond)
	entries, err := s.Store.List(ctx, audit.Filter{From: &from, To: &to})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(e.ID, entries[0].ID)

	later := base.Add(2 * time.Microsecond)
	entries, err = s.Store.List(ctx, audit.Filter{From: &later})
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *ContractSuite) TestRepeatedListIsStable() {
	ctx := context.Background()
	s.append(base, audit.ActionSOXActivity)
	s.append(base, audit.ActionSecurityEvent)
	s.append(base.Add(time.Minute), audit.ActionGDPRRequestProcessed)

	from, to := base, base.Add(time.Hour)
	filter := audit.Filter{From: &from, To: &to, Actions: []audit.Action{audit.ActionSOXActivity, audit.ActionGDPRRequestProcessed}}
	first, err := s.Store.List(ctx, filter)
	s.Require().NoError(err)
	second, err := s.Store.List(ctx, filter)
	s.Require().NoError(err)

	s.Len(first, 2)
	s.Equal(first, second)
}

func (s *ContractSuite) TestAppendContinuesAfterImportedEntries() {
	ctx := context.Background()
	local := s.append(base, audit.ActionSOXActivity)

	foreign, err := audit.Seal(audit.Entry{
		ID:            uuid.NewString(),
		Timestamp:     base.Add(time.Second),
		Action:        audit.ActionSecurityEvent,
		DataSubjectID: audit.SystemSubject,
		Details:       audit.SecurityEventDetails{Event: "failed-login"},
	}, 4, "")
	s.Require().NoError(err)
	s.Require().NoError(s.Store.Import(ctx, foreign))

	next := s.append(base.Add(2*time.Second), audit.ActionSOXActivity)
	s.Equal(int64(6), next.Seq)
	s.Equal(foreign.Hash, next.PrevHash)

	clash, err := audit.Seal(audit.Entry{
		ID:            uuid.NewString(),
		Timestamp:     base,
		Action:        audit.ActionSecurityEvent,
		DataSubjectID: audit.SystemSubject,
		Details:       audit.SecurityEventDetails{Event: "failed-login"},
	}, local.Seq-1, "")
	s.Require().NoError(err)
	s.ErrorIs(s.Store.Import(ctx, clash), sentinel.ErrConflict)

	chain, err := s.Store.ListChain(ctx)
	s.Require().NoError(err)
	seqs := make([]int64, len(chain))
	for i, e := range chain {
		seqs[i] = e.Seq
	}
	s.Equal([]int64{1, 5, 6}, seqs)
}
