package gdpr

import (
	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
)

// ValidateDataSubjectRequest checks shape and field constraints of req before
// any domain processing. Every violated constraint contributes one message;
// nothing short-circuits, so a caller can report all problems at once.
func ValidateDataSubjectRequest(req DataSubjectRequest) ValidationResult {
	var errs errorList

	errs.requireString(req.ID, "Request ID is required")
	errs.requireString(req.DataSubjectID, "Data subject ID is required")
	errs.requireString(string(req.Type), "Request type is required")
	errs.requireString(string(req.VerificationMethod), "Verification method is required")
	if req.Timestamp.IsZero() {
		errs.add("Timestamp is required")
	}

	if req.Type != "" && !req.Type.IsValid() {
		errs.add("Invalid request type. Must be one of: " + joinValues(requestTypes))
	}
	if req.VerificationMethod != "" && !req.VerificationMethod.IsValid() {
		errs.add("Invalid verification method. Must be one of: " + joinValues(verificationMethods))
	}
	if req.VerificationMethod.RequiresCode() && req.VerificationCode == "" {
		errs.add("Verification code is required for EMAIL and SMS verification")
	}
	if req.Type == RequestTypeRectification && req.RequestData == nil {
		errs.add("Request data is required for RECTIFICATION requests")
	}
	if req.DataSubjectID != "" && !IsValidDataSubjectID(req.DataSubjectID) {
		errs.add("Invalid data subject ID format. Must be a valid email or UUID")
	}

	return errs.result()
}

// ValidateConsentUpdate checks a consent change for a purpose, a recognised
// legal basis and an explicit granted flag.
func ValidateConsentUpdate(u ConsentUpdate) ValidationResult {
	var errs errorList

	errs.requireString(u.Purpose, "Purpose is required")
	errs.requireString(string(u.LegalBasis), "Legal basis is required")
	if u.LegalBasis != "" && !u.LegalBasis.IsValid() {
		errs.add("Invalid legal basis. Must be one of: " + joinValues(legalBases))
	}
	if u.Granted == nil {
		errs.add("Granted status is required")
	}

	return errs.result()
}

// ValidateIdentityVerification checks the evidence bundle submitted to verify
// a requester's identity.
func ValidateIdentityVerification(v IdentityVerification) ValidationResult {
	var errs errorList

	errs.requireString(v.DataSubjectID, "Data subject ID is required")
	errs.requireString(string(v.VerificationMethod), "Verification method is required")
	if v.VerificationMethod != "" && !v.VerificationMethod.IsValid() {
		errs.add("Invalid verification method. Must be one of: " + joinValues(verificationMethods))
	}
	if v.VerificationData == nil {
		errs.add("Verification data is required")
	}

	return errs.result()
}

// IsValidDataSubjectID accepts an email address or an RFC 4122 UUID of
// version 1 through 5, in any letter case.
func IsValidDataSubjectID(s string) bool {
	if govalidator.IsEmail(s) {
		return true
	}
	// uuid.Parse also accepts urn: and braced forms; only the canonical
	// 36 character layout is an identifier here.
	if len(s) != 36 {
		return false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return u.Version() >= 1 && u.Version() <= 5 && u.Variant() == uuid.RFC4122
}

type errorList []string

func (l *errorList) add(msg string) {
	*l = append(*l, msg)
}

func (l *errorList) requireString(v, msg string) {
	if v == "" {
		l.add(msg)
	}
}

func (l errorList) result() ValidationResult {
	errs := []string(l)
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
