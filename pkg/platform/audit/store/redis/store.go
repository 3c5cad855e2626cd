package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	audit "compliance/pkg/platform/audit"
	"compliance/pkg/platform/sentinel"
)

const (
	defaultPrefix   = "audit"
	maxWatchRetries = 64
)

// Store implements audit.Store and audit.Importer on Redis.
//
// Layout under the key prefix:
//
//	{p}:entry:{id}   JSON-encoded entry
//	{p}:by_time      sorted set, score = timestamp in µs, member = seq-padded id
//	{p}:by_seq       sorted set, score = seq, member = id
//	{p}:head         hash {seq, hash} of the last appended entry
type Store struct {
	client redis.UniversalClient
	prefix string
}

// Option configures the Store.
type Option func(*Store)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis audit store.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) entryKey(id string) string { return s.prefix + ":entry:" + id }
func (s *Store) byTimeKey() string         { return s.prefix + ":by_time" }
func (s *Store) bySeqKey() string          { return s.prefix + ":by_seq" }
func (s *Store) headKey() string           { return s.prefix + ":head" }

// timeMember sorts equal timestamps by sequence when read in reverse.
func timeMember(e audit.Entry) string {
	return fmt.Sprintf("%020d:%s", e.Seq, e.ID)
}

// Append seals the entry after the current head. Concurrent writers are
// serialised with WATCH on the head key and retried on conflict.
func (s *Store) Append(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	var sealed audit.Entry
	txf := func(tx *redis.Tx) error {
		head, err := tx.HGetAll(ctx, s.headKey()).Result()
		if err != nil {
			return fmt.Errorf("read chain head: %w", err)
		}
		var prevSeq int64
		if raw, ok := head["seq"]; ok {
			prevSeq, err = strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("parse chain head: %w", err)
			}
		}

		exists, err := tx.Exists(ctx, s.entryKey(entry.ID)).Result()
		if err != nil {
			return fmt.Errorf("check entry: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("entry %s: %w", entry.ID, sentinel.ErrConflict)
		}

		sealed, err = audit.Seal(entry, prevSeq, head["hash"])
		if err != nil {
			return fmt.Errorf("seal entry: %w", err)
		}
		payload, err := json.Marshal(sealed)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, sealed, payload)
			pipe.HSet(ctx, s.headKey(), "seq", sealed.Seq, "hash", sealed.Hash)
			return nil
		})
		return err
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, txf, s.headKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return audit.Entry{}, err
		}
		return sealed, nil
	}
	return audit.Entry{}, fmt.Errorf("append audit entry: too much contention: %w", sentinel.ErrUnavailable)
}

// Import stores a sealed entry unless its ID is already indexed. The entry,
// both indexes and the head are written in one MULTI so a failed import
// leaves nothing behind.
// A Seq held by another entry is a conflict. An entry past the head becomes
// the new head, so later appends continue after it.
func (s *Store) Import(ctx context.Context, entry audit.Entry) error {
	if err := audit.VerifyEntry(entry); err != nil {
		return err
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	seq := strconv.FormatInt(entry.Seq, 10)

	txf := func(tx *redis.Tx) error {
		// A stored but unindexed entry is finished rather than skipped.
		_, err := tx.ZScore(ctx, s.bySeqKey(), entry.ID).Result()
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, redis.Nil):
			return fmt.Errorf("check entry: %w", err)
		}
		holders, err := tx.ZRangeByScore(ctx, s.bySeqKey(), &redis.ZRangeBy{Min: seq, Max: seq, Count: 1}).Result()
		if err != nil {
			return fmt.Errorf("check sequence: %w", err)
		}
		if len(holders) > 0 {
			return fmt.Errorf("entry %s: seq %d already held by %s: %w", entry.ID, entry.Seq, holders[0], sentinel.ErrConflict)
		}
		headSeq, err := tx.HGet(ctx, s.headKey(), "seq").Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read chain head: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, entry, payload)
			if entry.Seq > headSeq {
				pipe.HSet(ctx, s.headKey(), "seq", entry.Seq, "hash", entry.Hash)
			}
			return nil
		})
		return err
	}

	keys := []string{s.entryKey(entry.ID), s.bySeqKey(), s.headKey()}
	for range maxWatchRetries {
		err := s.client.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("import entry: %w", err)
		}
		return nil
	}
	return fmt.Errorf("import audit entry: too much contention: %w", sentinel.ErrUnavailable)
}

func (s *Store) write(ctx context.Context, pipe redis.Pipeliner, e audit.Entry, payload []byte) {
	pipe.Set(ctx, s.entryKey(e.ID), payload, 0)
	s.index(ctx, pipe, e)
}

func (s *Store) index(ctx context.Context, pipe redis.Pipeliner, e audit.Entry) {
	pipe.ZAdd(ctx, s.byTimeKey(), redis.Z{Score: float64(e.Timestamp.UnixMicro()), Member: timeMember(e)})
	pipe.ZAdd(ctx, s.bySeqKey(), redis.Z{Score: float64(e.Seq), Member: e.ID})
}

// List returns matching entries newest first.
func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	filter = filter.Normalized()
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if filter.From != nil {
		rng.Min = strconv.FormatInt(filter.From.UnixMicro(), 10)
	}
	if filter.To != nil {
		rng.Max = strconv.FormatInt(filter.To.UnixMicro(), 10)
	}
	members, err := s.client.ZRevRangeByScore(ctx, s.byTimeKey(), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("query audit index: %w", err)
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		if len(m) > 21 {
			ids = append(ids, m[21:])
		}
	}
	entries, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := entries[:0]
	for _, e := range entries {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	audit.SortNewestFirst(out)
	return out, nil
}

// ListChain returns every entry in ascending sequence order.
func (s *Store) ListChain(ctx context.Context) ([]audit.Entry, error) {
	ids, err := s.client.ZRange(ctx, s.bySeqKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("query audit chain: %w", err)
	}
	return s.load(ctx, ids)
}

func (s *Store) load(ctx context.Context, ids []string) ([]audit.Entry, error) {
	entries := make([]audit.Entry, 0, len(ids))
	if len(ids) == 0 {
		return entries, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.entryKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load audit entries: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("entry %s indexed but missing: %w", ids[i], sentinel.ErrNotFound)
		}
		var e audit.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", ids[i], err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
