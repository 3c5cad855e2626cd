package gdpr

import (
	"strings"
	"time"
)

// RequestType is the data-subject right being exercised.
type RequestType string

const (
	RequestTypeAccess        RequestType = "ACCESS"
	RequestTypeRectification RequestType = "RECTIFICATION"
	RequestTypeErasure       RequestType = "ERASURE"
	RequestTypePortability   RequestType = "PORTABILITY"
)

var requestTypes = []RequestType{
	RequestTypeAccess,
	RequestTypeRectification,
	RequestTypeErasure,
	RequestTypePortability,
}

// IsValid reports whether t is one of the supported request types.
func (t RequestType) IsValid() bool {
	for _, v := range requestTypes {
		if t == v {
			return true
		}
	}
	return false
}

// VerificationMethod is how the requester proved they are the data subject.
type VerificationMethod string

const (
	VerificationEmail      VerificationMethod = "EMAIL"
	VerificationSMS        VerificationMethod = "SMS"
	VerificationIDDocument VerificationMethod = "ID_DOCUMENT"
)

var verificationMethods = []VerificationMethod{
	VerificationEmail,
	VerificationSMS,
	VerificationIDDocument,
}

// IsValid reports whether m is one of the supported verification methods.
func (m VerificationMethod) IsValid() bool {
	for _, v := range verificationMethods {
		if m == v {
			return true
		}
	}
	return false
}

// RequiresCode is true for methods that deliver a one-time code.
func (m VerificationMethod) RequiresCode() bool {
	return m == VerificationEmail || m == VerificationSMS
}

// LegalBasis is the Article 6 ground a consent update relies on.
type LegalBasis string

const (
	LegalBasisConsent             LegalBasis = "CONSENT"
	LegalBasisContract            LegalBasis = "CONTRACT"
	LegalBasisLegalObligation     LegalBasis = "LEGAL_OBLIGATION"
	LegalBasisVitalInterests      LegalBasis = "VITAL_INTERESTS"
	LegalBasisPublicTask          LegalBasis = "PUBLIC_TASK"
	LegalBasisLegitimateInterests LegalBasis = "LEGITIMATE_INTERESTS"
)

var legalBases = []LegalBasis{
	LegalBasisConsent,
	LegalBasisContract,
	LegalBasisLegalObligation,
	LegalBasisVitalInterests,
	LegalBasisPublicTask,
	LegalBasisLegitimateInterests,
}

// IsValid reports whether b is one of the six lawful bases.
func (b LegalBasis) IsValid() bool {
	for _, v := range legalBases {
		if b == v {
			return true
		}
	}
	return false
}

// DataSubjectRequest is an incoming GDPR request as received from intake.
// Zero values mean the field was not supplied.
type DataSubjectRequest struct {
	ID                 string             `json:"id"`
	DataSubjectID      string             `json:"dataSubjectId"`
	Type               RequestType        `json:"type"`
	VerificationMethod VerificationMethod `json:"verificationMethod"`
	VerificationCode   string             `json:"verificationCode,omitempty"`
	RequestData        map[string]any     `json:"requestData,omitempty"`
	Timestamp          time.Time          `json:"timestamp"`
}

// ConsentUpdate records a change to a data subject's consent for one purpose.
type ConsentUpdate struct {
	DataSubjectID string     `json:"dataSubjectId,omitempty"`
	Purpose       string     `json:"purpose"`
	LegalBasis    LegalBasis `json:"legalBasis"`
	Granted       *bool      `json:"granted"`
}

// IdentityVerification carries the evidence submitted to verify a requester.
type IdentityVerification struct {
	DataSubjectID      string             `json:"dataSubjectId"`
	VerificationMethod VerificationMethod `json:"verificationMethod"`
	VerificationData   map[string]any     `json:"verificationData"`
}

// RequestOutcome is what domain processing produced for a validated request.
type RequestOutcome struct {
	RequestID        string         `json:"requestId"`
	Status           string         `json:"status"`
	ProcessingTimeMs int64          `json:"processingTimeMs"`
	Data             map[string]any `json:"data,omitempty"`
	Reason           string         `json:"reason,omitempty"`
}

// DataProvided reports whether the outcome returned personal data to the subject.
func (o RequestOutcome) DataProvided() bool {
	return len(o.Data) > 0
}

// ValidationResult lists every violated constraint, in check order.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
