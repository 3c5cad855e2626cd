package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action is the kind of compliance-relevant event an Entry records.
type Action string

const (
	ActionGDPRRequestProcessed Action = "GDPR_REQUEST_PROCESSED"
	ActionSOXActivity          Action = "SOX_ACTIVITY"
	ActionSecurityEvent        Action = "SECURITY_EVENT"
	ActionComplianceViolation  Action = "COMPLIANCE_VIOLATION"
)

// SystemSubject is the DataSubjectID of entries not tied to a data subject.
const SystemSubject = "system"

// Actions lists every supported action in declaration order.
func Actions() []Action {
	return []Action{
		ActionGDPRRequestProcessed,
		ActionSOXActivity,
		ActionSecurityEvent,
		ActionComplianceViolation,
	}
}

// ParseAction constructs an Action from external input.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", fmt.Errorf("unknown audit action: %q", s)
	}
	return a, nil
}

// IsValid checks the action against the supported set.
func (a Action) IsValid() bool {
	_, ok := actionCategories[a]
	return ok
}

// EventCategory classifies entries by their primary purpose.
// This drives stream routing and retention.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// These feed into SIEM systems and alerting pipelines.
	CategorySecurity EventCategory = "security"
)

var actionCategories = map[Action]EventCategory{
	ActionGDPRRequestProcessed: CategoryCompliance,
	ActionSOXActivity:          CategoryCompliance,
	ActionComplianceViolation:  CategoryCompliance,
	ActionSecurityEvent:        CategorySecurity,
}

// Category returns the EventCategory for this action.
// Unknown actions default to CategoryCompliance so they are never under-retained.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryCompliance
}

// Entry is one immutable audit record. Seq, PrevHash and Hash are assigned by
// the store when the entry is appended and link it into the hash chain.
type Entry struct {
	ID            string    `json:"id"`
	Seq           int64     `json:"seq"`
	Timestamp     time.Time `json:"timestamp"`
	Action        Action    `json:"action"`
	DataSubjectID string    `json:"dataSubjectId"`
	RequestType   string    `json:"requestType,omitempty"`
	Details       Details   `json:"details"`
	PrevHash      string    `json:"prevHash"`
	Hash          string    `json:"hash"`
}

type entryJSON struct {
	ID            string          `json:"id"`
	Seq           int64           `json:"seq"`
	Timestamp     time.Time       `json:"timestamp"`
	Action        Action          `json:"action"`
	DataSubjectID string          `json:"dataSubjectId"`
	RequestType   string          `json:"requestType,omitempty"`
	Details       json.RawMessage `json:"details"`
	PrevHash      string          `json:"prevHash"`
	Hash          string          `json:"hash"`
}

// UnmarshalJSON decodes Details into the variant selected by Action.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	details, err := DecodeDetails(raw.Action, raw.Details)
	if err != nil {
		return err
	}
	*e = Entry{
		ID:            raw.ID,
		Seq:           raw.Seq,
		Timestamp:     raw.Timestamp,
		Action:        raw.Action,
		DataSubjectID: raw.DataSubjectID,
		RequestType:   raw.RequestType,
		Details:       details,
		PrevHash:      raw.PrevHash,
		Hash:          raw.Hash,
	}
	return nil
}

// Filter selects entries for retrieval. Nil bounds are open; both bounds are inclusive.
type Filter struct {
	From    *time.Time
	To      *time.Time
	Actions []Action
}

// Normalized truncates both bounds to the precision entries are sealed with,
// so an entry logged at or after From is never cut off by its truncation.
func (f Filter) Normalized() Filter {
	if f.From != nil {
		from := NormalizeTime(*f.From)
		f.From = &from
	}
	if f.To != nil {
		to := NormalizeTime(*f.To)
		f.To = &to
	}
	return f
}

// Matches reports whether e falls inside the filter.
func (f Filter) Matches(e Entry) bool {
	f = f.Normalized()
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	if len(f.Actions) == 0 {
		return true
	}
	for _, a := range f.Actions {
		if e.Action == a {
			return true
		}
	}
	return false
}
