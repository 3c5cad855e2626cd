package audit

import "context"

// Store persists audit entries. Implementations are append-only: there is no
// update or delete. Append seals the entry into the hash chain (see Seal)
// while holding whatever lock serialises writers, so insertion order and the
// chain agree.
type Store interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
	// List returns matching entries newest first.
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Importer accepts entries that were already sealed elsewhere, such as
// entries replayed from the audit stream. Import is idempotent by Entry.ID.
type Importer interface {
	Import(ctx context.Context, entry Entry) error
}

// ChainLister returns the whole log in ascending Seq order, the order
// VerifyChain expects.
type ChainLister interface {
	ListChain(ctx context.Context) ([]Entry, error)
}
