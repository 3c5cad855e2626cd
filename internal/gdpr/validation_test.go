package gdpr

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type ValidationSuite struct {
	suite.Suite
	now time.Time
}

func TestValidationSuite(t *testing.T) {
	suite.Run(t, new(ValidationSuite))
}

func (s *ValidationSuite) SetupTest() {
	s.now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func (s *ValidationSuite) validRequest() DataSubjectRequest {
	return DataSubjectRequest{
		ID:                 "req-001",
		DataSubjectID:      "user@example.com",
		Type:               RequestTypeAccess,
		VerificationMethod: VerificationEmail,
		VerificationCode:   "482913",
		Timestamp:          s.now,
	}
}

// TestDataSubjectRequest_Presence verifies one error per missing required field.
func (s *ValidationSuite) TestDataSubjectRequest_Presence() {
	s.Run("valid request has no errors", func() {
		res := ValidateDataSubjectRequest(s.validRequest())
		s.True(res.Valid)
		s.NotNil(res.Errors)
		s.Empty(res.Errors)
	})

	s.Run("empty request reports every missing field in order", func() {
		res := ValidateDataSubjectRequest(DataSubjectRequest{})
		s.False(res.Valid)
		s.Equal([]string{
			"Request ID is required",
			"Data subject ID is required",
			"Request type is required",
			"Verification method is required",
			"Timestamp is required",
		}, res.Errors)
	})

	s.Run("each missing field contributes exactly one error", func() {
		mutators := map[string]func(*DataSubjectRequest){
			"id":                 func(r *DataSubjectRequest) { r.ID = "" },
			"dataSubjectId":      func(r *DataSubjectRequest) { r.DataSubjectID = "" },
			"type":               func(r *DataSubjectRequest) { r.Type = "" },
			"verificationMethod": func(r *DataSubjectRequest) { r.VerificationMethod = "" },
			"timestamp":          func(r *DataSubjectRequest) { r.Timestamp = time.Time{} },
		}
		for field, mutate := range mutators {
			req := s.validRequest()
			mutate(&req)
			res := ValidateDataSubjectRequest(req)
			s.False(res.Valid, field)
			s.Len(res.Errors, 1, field)
		}
	})
}

// TestDataSubjectRequest_Independence verifies that failures accumulate
// rather than short-circuit.
func (s *ValidationSuite) TestDataSubjectRequest_Independence() {
	req := s.validRequest()
	req.ID = ""
	req.Timestamp = time.Time{}
	req.Type = "DELETE_EVERYTHING"

	res := ValidateDataSubjectRequest(req)
	s.False(res.Valid)
	s.Equal([]string{
		"Request ID is required",
		"Timestamp is required",
		"Invalid request type. Must be one of: ACCESS, RECTIFICATION, ERASURE, PORTABILITY",
	}, res.Errors)
}

func (s *ValidationSuite) TestDataSubjectRequest_Enums() {
	s.Run("invalid verification method names allowed set", func() {
		req := s.validRequest()
		req.VerificationMethod = "CARRIER_PIGEON"
		res := ValidateDataSubjectRequest(req)
		s.Equal([]string{"Invalid verification method. Must be one of: EMAIL, SMS, ID_DOCUMENT"}, res.Errors)
	})

	s.Run("enum values are case sensitive", func() {
		req := s.validRequest()
		req.Type = "access"
		res := ValidateDataSubjectRequest(req)
		s.False(res.Valid)
		s.Len(res.Errors, 1)
	})
}

func (s *ValidationSuite) TestDataSubjectRequest_ConditionalFields() {
	s.Run("email verification without code is invalid", func() {
		req := s.validRequest()
		req.VerificationCode = ""
		res := ValidateDataSubjectRequest(req)
		s.False(res.Valid)
		s.Equal([]string{"Verification code is required for EMAIL and SMS verification"}, res.Errors)
	})

	s.Run("sms verification without code is invalid", func() {
		req := s.validRequest()
		req.VerificationMethod = VerificationSMS
		req.VerificationCode = ""
		s.False(ValidateDataSubjectRequest(req).Valid)
	})

	s.Run("id document verification needs no code", func() {
		req := s.validRequest()
		req.VerificationMethod = VerificationIDDocument
		req.VerificationCode = ""
		res := ValidateDataSubjectRequest(req)
		s.True(res.Valid, "errors: %v", res.Errors)
	})

	s.Run("rectification without request data is invalid", func() {
		req := s.validRequest()
		req.Type = RequestTypeRectification
		res := ValidateDataSubjectRequest(req)
		s.False(res.Valid)
		s.Equal([]string{"Request data is required for RECTIFICATION requests"}, res.Errors)
	})

	s.Run("rectification with empty request data object is accepted", func() {
		req := s.validRequest()
		req.Type = RequestTypeRectification
		req.RequestData = map[string]any{}
		s.True(ValidateDataSubjectRequest(req).Valid)
	})

	s.Run("erasure needs no request data", func() {
		req := s.validRequest()
		req.Type = RequestTypeErasure
		s.True(ValidateDataSubjectRequest(req).Valid)
	})
}

func (s *ValidationSuite) TestDataSubjectIDFormat() {
	accepted := []string{
		"user@example.com",
		uuid.NewString(),
		"6BA7B810-9DAD-11D1-80B4-00C04FD430C8",
		"6ba7b811-9dad-31d1-80b4-00c04fd430c8",
	}
	for _, v := range accepted {
		s.True(IsValidDataSubjectID(v), v)
	}

	rejected := []string{
		"not-an-id",
		"user@",
		"00000000-0000-0000-0000-000000000000",
		"6ba7b810-9dad-61d1-80b4-00c04fd430c8",
		"urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"{6ba7b810-9dad-11d1-80b4-00c04fd430c8}",
	}
	for _, v := range rejected {
		s.False(IsValidDataSubjectID(v), v)
	}

	s.Run("bad format adds a single error", func() {
		req := s.validRequest()
		req.DataSubjectID = "not-an-id"
		res := ValidateDataSubjectRequest(req)
		s.Equal([]string{"Invalid data subject ID format. Must be a valid email or UUID"}, res.Errors)
	})
}

func (s *ValidationSuite) TestConsentUpdate() {
	granted := true

	s.Run("valid update", func() {
		res := ValidateConsentUpdate(ConsentUpdate{Purpose: "marketing", LegalBasis: LegalBasisConsent, Granted: &granted})
		s.True(res.Valid)
	})

	s.Run("explicit false is still a granted status", func() {
		denied := false
		res := ValidateConsentUpdate(ConsentUpdate{Purpose: "marketing", LegalBasis: LegalBasisContract, Granted: &denied})
		s.True(res.Valid)
	})

	s.Run("accumulates all errors", func() {
		res := ValidateConsentUpdate(ConsentUpdate{})
		s.Equal([]string{
			"Purpose is required",
			"Legal basis is required",
			"Granted status is required",
		}, res.Errors)
	})

	s.Run("unknown legal basis names the six values", func() {
		res := ValidateConsentUpdate(ConsentUpdate{Purpose: "analytics", LegalBasis: "GUT_FEELING", Granted: &granted})
		s.Equal([]string{
			"Invalid legal basis. Must be one of: CONSENT, CONTRACT, LEGAL_OBLIGATION, VITAL_INTERESTS, PUBLIC_TASK, LEGITIMATE_INTERESTS",
		}, res.Errors)
	})
}

func (s *ValidationSuite) TestIdentityVerification() {
	s.Run("valid verification", func() {
		res := ValidateIdentityVerification(IdentityVerification{
			DataSubjectID:      "user@example.com",
			VerificationMethod: VerificationIDDocument,
			VerificationData:   map[string]any{"documentNumber": "X123"},
		})
		s.True(res.Valid)
	})

	s.Run("accumulates all errors", func() {
		res := ValidateIdentityVerification(IdentityVerification{})
		s.Equal([]string{
			"Data subject ID is required",
			"Verification method is required",
			"Verification data is required",
		}, res.Errors)
	})

	s.Run("unknown method", func() {
		res := ValidateIdentityVerification(IdentityVerification{
			DataSubjectID:      "user@example.com",
			VerificationMethod: "FAX",
			VerificationData:   map[string]any{},
		})
		s.Len(res.Errors, 1)
	})
}
