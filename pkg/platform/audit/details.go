package audit

import (
	"encoding/json"
	"fmt"
)

// Details is the typed payload of an Entry. The set of implementations is
// closed; each variant belongs to exactly one Action.
type Details interface {
	Action() Action
	isDetails()
}

// Severity levels for security events and violations.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// GDPRRequestDetails captures the outcome of a processed data-subject request.
type GDPRRequestDetails struct {
	RequestID          string `json:"requestId"`
	VerificationMethod string `json:"verificationMethod"`
	Outcome            string `json:"outcome"`
	ProcessingTimeMs   int64  `json:"processingTimeMs"`
	DataProvided       bool   `json:"dataProvided"`
	Reason             string `json:"reason,omitempty"`
}

func (GDPRRequestDetails) Action() Action { return ActionGDPRRequestProcessed }
func (GDPRRequestDetails) isDetails()     {}

// SOXActivityDetails records a financial-controls activity.
type SOXActivityDetails struct {
	Activity   string            `json:"activity"`
	Control    string            `json:"control,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (SOXActivityDetails) Action() Action { return ActionSOXActivity }
func (SOXActivityDetails) isDetails()     {}

// SecurityEventDetails records a security-relevant event.
type SecurityEventDetails struct {
	Event      string            `json:"event"`
	Severity   Severity          `json:"severity"`
	IP         string            `json:"ip,omitempty"`
	UserAgent  string            `json:"userAgent,omitempty"`
	Browser    string            `json:"browser,omitempty"`
	OS         string            `json:"os,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (SecurityEventDetails) Action() Action { return ActionSecurityEvent }
func (SecurityEventDetails) isDetails()     {}

// ViolationDetails records a detected compliance violation.
type ViolationDetails struct {
	Violation  string            `json:"violation"`
	Regulation string            `json:"regulation,omitempty"`
	Severity   Severity          `json:"severity"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (ViolationDetails) Action() Action { return ActionComplianceViolation }
func (ViolationDetails) isDetails()     {}

// DecodeDetails decodes raw JSON into the variant owned by action.
// Empty input yields the zero variant.
func DecodeDetails(action Action, raw json.RawMessage) (Details, error) {
	var (
		d   Details
		err error
	)
	switch action {
	case ActionGDPRRequestProcessed:
		var v GDPRRequestDetails
		err = unmarshalOptional(raw, &v)
		d = v
	case ActionSOXActivity:
		var v SOXActivityDetails
		err = unmarshalOptional(raw, &v)
		d = v
	case ActionSecurityEvent:
		var v SecurityEventDetails
		err = unmarshalOptional(raw, &v)
		d = v
	case ActionComplianceViolation:
		var v ViolationDetails
		err = unmarshalOptional(raw, &v)
		d = v
	default:
		return nil, fmt.Errorf("unknown audit action: %q", action)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", action, err)
	}
	return d, nil
}

func unmarshalOptional(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
