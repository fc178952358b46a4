package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: the resource does not exist (e.g. no artifact was ever
//   rendered for an identifier)
// - ErrConflict: the resource already exists in a conflicting state
// - ErrUnavailable: a backing service is temporarily unreachable
//
// For validation and pipeline failures, use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
