package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: entity with the same identity already exists
// - ErrTampered: persisted audit chain does not verify
// - ErrUnavailable: service or resource temporarily unavailable
// - ErrClosed: component was shut down and no longer accepts work
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrTampered    = errors.New("audit chain tampered")
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)
