package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, clients and loaders return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrConflict: a stored entity with the same unique key already exists
//   - ErrInvalidState: component asked to act in the wrong state
//   - ErrMalformed: persisted or remote payload cannot be decoded
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrMalformed    = errors.New("malformed")
)
