// Package audit records an append-only trail of pipeline actions. Audit
// failures are reported but never fail the issuance or verification pipeline.
package audit

import (
	"context"
	"time"
)

// Action names what happened to a certificate.
type Action string

const (
	ActionCertificateIssued Action = "certificate_issued"
	ActionCertificateFound  Action = "certificate_verified"
	ActionLookupMiss        Action = "lookup_not_found"
	ActionSubmissionFailed  Action = "submission_failed"
	ActionSubmissionPending Action = "submission_pending"
	ActionArtifactRendered  Action = "artifact_rendered"
)

// Event is emitted from the orchestrators to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID            string
	Timestamp     time.Time
	CertificateID string
	Action        Action
	TxHash        string
	RequestID     string
	Detail        string
}

// Store persists events. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCertificate(ctx context.Context, certificateID string) ([]Event, error)
}
