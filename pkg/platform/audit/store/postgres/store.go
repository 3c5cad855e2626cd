package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	audit "compliance/pkg/platform/audit"
	"compliance/pkg/platform/sentinel"
	txcontext "compliance/pkg/platform/tx"
)

// appendLockKey serialises writers across processes so Seq and the hash chain
// stay linear. The value is arbitrary but must be shared by every writer.
const appendLockKey int64 = 0x61756469746c6f67

const uniqueViolation = "23505"

// Store implements audit.Store and audit.Importer on the audit_entries table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append seals the entry after the current head inside a transaction that
// holds the append advisory lock.
func (s *Store) Append(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	var sealed audit.Entry
	err := txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
			return fmt.Errorf("acquire append lock: %w", err)
		}

		var (
			prevSeq  int64
			prevHash string
		)
		err := tx.QueryRowContext(ctx, `SELECT seq, hash FROM audit_entries ORDER BY seq DESC LIMIT 1`).
			Scan(&prevSeq, &prevHash)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read chain head: %w", err)
		}

		sealed, err = audit.Seal(entry, prevSeq, prevHash)
		if err != nil {
			return fmt.Errorf("seal entry: %w", err)
		}
		return insert(ctx, tx, sealed, false)
	})
	if err != nil {
		return audit.Entry{}, err
	}
	return sealed, nil
}

// Import inserts a sealed entry. Duplicate IDs are ignored.
func (s *Store) Import(ctx context.Context, entry audit.Entry) error {
	if err := audit.VerifyEntry(entry); err != nil {
		return err
	}
	return insert(ctx, s.db, entry, true)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, e audit.Entry, ignoreDuplicate bool) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	query := `
		INSERT INTO audit_entries (
			id, seq, ts, action, data_subject_id, request_type, details, prev_hash, hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if ignoreDuplicate {
		query += ` ON CONFLICT (id) DO NOTHING`
	}

	_, err = db.ExecContext(ctx, query,
		e.ID,
		e.Seq,
		e.Timestamp,
		string(e.Action),
		e.DataSubjectID,
		e.RequestType,
		details,
		e.PrevHash,
		e.Hash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("entry %s: %w", e.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns matching entries newest first. Equal timestamps are ordered
// by descending sequence, i.e. later insertion first.
func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	filter = filter.Normalized()
	var from, to sql.NullTime
	if filter.From != nil {
		from = sql.NullTime{Time: *filter.From, Valid: true}
	}
	if filter.To != nil {
		to = sql.NullTime{Time: *filter.To, Valid: true}
	}
	actions := make([]string, 0, len(filter.Actions))
	for _, a := range filter.Actions {
		actions = append(actions, string(a))
	}

	query := `
		SELECT id, seq, ts, action, data_subject_id, request_type, details, prev_hash, hash
		FROM audit_entries
		WHERE ($1::timestamptz IS NULL OR ts >= $1)
		  AND ($2::timestamptz IS NULL OR ts <= $2)
		  AND (cardinality($3::text[]) = 0 OR action = ANY($3))
		ORDER BY ts DESC, seq DESC
	`
	rows, err := s.db.QueryContext(ctx, query, from, to, pq.Array(actions))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListChain returns every entry in ascending sequence order.
func (s *Store) ListChain(ctx context.Context) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, ts, action, data_subject_id, request_type, details, prev_hash, hash
		FROM audit_entries
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query audit chain: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	entries := []audit.Entry{}
	for rows.Next() {
		var (
			e       audit.Entry
			action  string
			details []byte
		)
		err := rows.Scan(
			&e.ID,
			&e.Seq,
			&e.Timestamp,
			&action,
			&e.DataSubjectID,
			&e.RequestType,
			&details,
			&e.PrevHash,
			&e.Hash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = audit.Action(action)
		e.Timestamp = e.Timestamp.UTC()
		e.Details, err = audit.DecodeDetails(e.Action, details)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
