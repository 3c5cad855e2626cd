package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	audit "compliance/pkg/platform/audit"
	"compliance/pkg/platform/sentinel"
)

// InMemoryStore keeps the audit log in process memory. Entries are held in
// Seq order, so the last one is always the chain head.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
	byID    map[string]struct{}
	closed  bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]struct{})}
}

// Append seals the entry after the current head and stores it.
func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audit.Entry{}, sentinel.ErrClosed
	}
	if _, exists := s.byID[entry.ID]; exists {
		return audit.Entry{}, fmt.Errorf("entry %s: %w", entry.ID, sentinel.ErrConflict)
	}

	prevSeq, prevHash := s.headLocked()
	sealed, err := audit.Seal(entry, prevSeq, prevHash)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("seal entry: %w", err)
	}
	s.byID[sealed.ID] = struct{}{}
	s.entries = append(s.entries, sealed)
	return sealed, nil
}

// Import stores an already sealed entry at its Seq position. Re-importing a
// known ID is a no-op; a Seq held by another entry is a conflict.
func (s *InMemoryStore) Import(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return sentinel.ErrClosed
	}
	if _, exists := s.byID[entry.ID]; exists {
		return nil
	}
	if err := audit.VerifyEntry(entry); err != nil {
		return err
	}
	i, taken := slices.BinarySearchFunc(s.entries, entry.Seq, func(e audit.Entry, seq int64) int {
		return cmp.Compare(e.Seq, seq)
	})
	if taken {
		return fmt.Errorf("entry %s: seq %d already held by %s: %w", entry.ID, entry.Seq, s.entries[i].ID, sentinel.ErrConflict)
	}
	s.byID[entry.ID] = struct{}{}
	s.entries = slices.Insert(s.entries, i, entry)
	return nil
}

// List returns a snapshot of matching entries, newest first.
func (s *InMemoryStore) List(_ context.Context, filter audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, sentinel.ErrClosed
	}

	out := make([]audit.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	audit.SortNewestFirst(out)
	return out, nil
}

// ListChain returns every entry in ascending sequence order.
func (s *InMemoryStore) ListChain(_ context.Context) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, sentinel.ErrClosed
	}
	return append([]audit.Entry{}, s.entries...), nil
}

// Len returns the number of stored entries.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close rejects further reads and writes.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *InMemoryStore) headLocked() (int64, string) {
	if len(s.entries) == 0 {
		return 0, audit.GenesisHash
	}
	last := s.entries[len(s.entries)-1]
	return last.Seq, last.Hash
}
