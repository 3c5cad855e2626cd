package audit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"compliance/pkg/platform/sentinel"
)

// GenesisHash is the PrevHash of the first entry in a chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// hashedFields fixes the field set and order that Hash covers. All fields are
// concrete types so json.Marshal output is deterministic.
type hashedFields struct {
	Seq           int64           `json:"seq"`
	ID            string          `json:"id"`
	Timestamp     string          `json:"ts"`
	Action        Action          `json:"action"`
	DataSubjectID string          `json:"subject"`
	RequestType   string          `json:"request_type"`
	Details       json.RawMessage `json:"details"`
	PrevHash      string          `json:"prev_hash"`
}

// Seal links entry after a chain whose last element has sequence prevSeq and
// hash prevHash. Timestamps are normalised to UTC microseconds so the hash
// survives a round trip through stores with microsecond precision.
func Seal(entry Entry, prevSeq int64, prevHash string) (Entry, error) {
	if prevHash == "" {
		prevHash = GenesisHash
	}
	entry.Seq = prevSeq + 1
	entry.Timestamp = NormalizeTime(entry.Timestamp)
	entry.PrevHash = prevHash

	sum, err := ComputeHash(entry)
	if err != nil {
		return Entry{}, err
	}
	entry.Hash = sum
	return entry, nil
}

// ComputeHash returns the hex BLAKE2b-256 digest of the entry's sealed fields.
func ComputeHash(entry Entry) (string, error) {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return "", fmt.Errorf("marshal details: %w", err)
	}
	payload, err := json.Marshal(hashedFields{
		Seq:           entry.Seq,
		ID:            entry.ID,
		Timestamp:     NormalizeTime(entry.Timestamp).Format(time.RFC3339Nano),
		Action:        entry.Action,
		DataSubjectID: entry.DataSubjectID,
		RequestType:   entry.RequestType,
		Details:       details,
		PrevHash:      entry.PrevHash,
	})
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyEntry checks that an entry's Hash matches its content.
func VerifyEntry(entry Entry) error {
	sum, err := ComputeHash(entry)
	if err != nil {
		return err
	}
	if sum != entry.Hash {
		return fmt.Errorf("entry %s (seq %d): %w", entry.ID, entry.Seq, sentinel.ErrTampered)
	}
	return nil
}

// VerifyChain checks entries given in ascending Seq order: every hash matches
// its content, sequence numbers are contiguous and each PrevHash points at the
// previous entry. An empty chain is valid.
func VerifyChain(entries []Entry) error {
	prevHash := GenesisHash
	var prevSeq int64
	for i, e := range entries {
		if i > 0 && e.Seq != prevSeq+1 {
			return fmt.Errorf("gap after seq %d (found %d): %w", prevSeq, e.Seq, sentinel.ErrTampered)
		}
		if i == 0 {
			prevSeq = e.Seq - 1
			if e.Seq == 1 && e.PrevHash != GenesisHash {
				return fmt.Errorf("first entry does not start at genesis: %w", sentinel.ErrTampered)
			}
		} else if e.PrevHash != prevHash {
			return fmt.Errorf("entry %s breaks chain at seq %d: %w", e.ID, e.Seq, sentinel.ErrTampered)
		}
		if err := VerifyEntry(e); err != nil {
			return err
		}
		prevHash = e.Hash
		prevSeq = e.Seq
	}
	return nil
}

// NormalizeTime truncates t to microseconds in UTC.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
