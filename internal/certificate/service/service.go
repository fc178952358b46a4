// Package service orchestrates the certificate pipeline: identifier
// generation, ledger submission, post-submission read-back, and artifact
// caching.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"certledger/internal/audit"
	"certledger/internal/certificate/ident"
	"certledger/internal/certificate/models"
	"certledger/internal/document"
	"certledger/internal/platform/metrics"
	"certledger/internal/platform/middleware"
	dErrors "certledger/pkg/domain-errors"
)

// Submitter broadcasts a certificate record to the ledger and blocks until
// it is mined or the context expires.
type Submitter interface {
	IssueCertificate(ctx context.Context, rec models.CertificateRecord) (models.TransactionReceipt, error)
}

// Verifier reads a certificate record back from the ledger.
type Verifier interface {
	Verify(ctx context.Context, id, tag string) (models.VerificationResult, error)
}

// DocumentStore materializes the printable artifact for a record.
type DocumentStore interface {
	Ensure(ctx context.Context, doc document.Document) (string, error)
}

// IssueRequest carries the caller-supplied certificate fields. The identifier
// and issue date are never caller-supplied.
type IssueRequest struct {
	Student     string
	Course      string
	Institution string
}

// Service implements the issuance and verification operations.
type Service struct {
	submitter     Submitter
	verifier      Verifier
	docs          DocumentStore
	audit         *audit.Publisher
	metrics       *metrics.Metrics
	log           *slog.Logger
	submitTimeout time.Duration
}

func New(
	submitter Submitter,
	verifier Verifier,
	docs DocumentStore,
	auditPub *audit.Publisher,
	m *metrics.Metrics,
	log *slog.Logger,
	submitTimeout time.Duration,
) *Service {
	return &Service{
		submitter:     submitter,
		verifier:      verifier,
		docs:          docs,
		audit:         auditPub,
		metrics:       m,
		log:           log,
		submitTimeout: submitTimeout,
	}
}

// Issue generates an identifier, writes the record to the ledger, and renders
// the artifact. A context deadline that expires while waiting for the receipt
// yields a CodePending error with the transaction hash preserved in the
// result; the submission itself may still land.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (models.IssuanceResult, error) {
	if err := validateIssueRequest(req); err != nil {
		return models.IssuanceResult{}, err
	}

	id := ident.New()
	rec := models.CertificateRecord{
		ID:          id,
		Student:     strings.TrimSpace(req.Student),
		Course:      strings.TrimSpace(req.Course),
		Institution: strings.TrimSpace(req.Institution),
		IssueDate:   time.Now().UTC(),
		// The tag travels with the record so future verifiers can bind the
		// lookup key to the stored payload.
		IntegrityTag: id,
	}

	subCtx := ctx
	if s.submitTimeout > 0 {
		var cancel context.CancelFunc
		subCtx, cancel = context.WithTimeout(ctx, s.submitTimeout)
		defer cancel()
	}

	start := time.Now()
	receipt, err := s.submitter.IssueCertificate(subCtx, rec)
	if err != nil {
		if dErrors.Is(err, dErrors.CodePending) {
			s.log.WarnContext(ctx, "submission still pending at deadline",
				"certificate_id", id, "tx_hash", receipt.TxHash)
			s.emit(ctx, audit.Event{
				CertificateID: id,
				Action:        audit.ActionSubmissionPending,
				TxHash:        receipt.TxHash,
			})
			return models.IssuanceResult{
				ID:        id,
				TxHash:    receipt.TxHash,
				IssueDate: rec.IssueDate,
			}, err
		}
		s.metrics.IncSubmissionFailure()
		s.emit(ctx, audit.Event{
			CertificateID: id,
			Action:        audit.ActionSubmissionFailed,
			Detail:        err.Error(),
		})
		return models.IssuanceResult{}, err
	}
	s.metrics.ObserveConfirmation(time.Since(start))
	s.metrics.IncIssued()

	// Read the record back so the artifact carries the ledger's timestamp
	// rather than ours. A lagging read falls back to the local clock.
	issueDate, authoritative := rec.IssueDate, false
	if vr, verr := s.verifier.Verify(ctx, id, rec.IntegrityTag); verr == nil && vr.Found {
		issueDate, authoritative = vr.IssueDate, true
	} else if verr != nil {
		s.log.WarnContext(ctx, "post-submission read failed, using local issue date",
			"certificate_id", id, "error", verr.Error())
	}

	path, derr := s.docs.Ensure(ctx, document.Document{
		ID:          id,
		Student:     rec.Student,
		Course:      rec.Course,
		Institution: rec.Institution,
		IssueDate:   issueDate,
	})
	if derr != nil {
		// The ledger record exists, so the issuance stands. The artifact is
		// re-attempted on the next lookup or download.
		s.log.ErrorContext(ctx, "artifact render failed after confirmation",
			"certificate_id", id, "error", derr.Error())
		path = ""
	} else {
		s.metrics.IncArtifactRendered()
		s.emit(ctx, audit.Event{CertificateID: id, Action: audit.ActionArtifactRendered})
	}

	s.emit(ctx, audit.Event{
		CertificateID: id,
		Action:        audit.ActionCertificateIssued,
		TxHash:        receipt.TxHash,
	})
	s.log.InfoContext(ctx, "certificate issued",
		"certificate_id", id,
		"tx_hash", receipt.TxHash,
		"block", receipt.BlockNumber,
	)

	return models.IssuanceResult{
		ID:                id,
		TxHash:            receipt.TxHash,
		BlockNumber:       receipt.BlockNumber,
		ArtifactPath:      path,
		IssueDate:         issueDate,
		AuthoritativeDate: authoritative,
	}, nil
}

// Lookup reads a certificate from the ledger. An absent record is a normal
// Found == false result, not an error. For present records the artifact is
// materialized on demand, so lookups against a cold cache repopulate it.
func (s *Service) Lookup(ctx context.Context, id string) (models.LookupResult, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !ident.Valid(id) {
		return models.LookupResult{}, dErrors.Newf(dErrors.CodeBadRequest,
			"certificate id must be %d characters A-Z0-9", ident.Length)
	}

	vr, err := s.verifier.Verify(ctx, id, id)
	if err != nil {
		return models.LookupResult{}, err
	}
	if !vr.Found {
		s.metrics.IncVerification("not_found")
		s.emit(ctx, audit.Event{CertificateID: id, Action: audit.ActionLookupMiss})
		return models.LookupResult{}, nil
	}
	s.metrics.IncVerification("found")

	rec := models.CertificateRecord{
		ID:           id,
		Student:      vr.Student,
		Course:       vr.Course,
		Institution:  vr.Institution,
		IssueDate:    vr.IssueDate,
		IntegrityTag: id,
	}

	path, derr := s.docs.Ensure(ctx, document.Document{
		ID:          id,
		Student:     rec.Student,
		Course:      rec.Course,
		Institution: rec.Institution,
		IssueDate:   rec.IssueDate,
	})
	if derr != nil {
		s.log.ErrorContext(ctx, "artifact render failed during lookup",
			"certificate_id", id, "error", derr.Error())
		path = ""
	}

	s.emit(ctx, audit.Event{CertificateID: id, Action: audit.ActionCertificateFound})
	return models.LookupResult{Found: true, Record: rec, ArtifactPath: path}, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.RequestID = middleware.GetRequestID(ctx)
	s.audit.Emit(ctx, event)
}

func validateIssueRequest(req IssueRequest) error {
	switch {
	case strings.TrimSpace(req.Student) == "":
		return dErrors.New(dErrors.CodeBadRequest, "studentName is required")
	case strings.TrimSpace(req.Course) == "":
		return dErrors.New(dErrors.CodeBadRequest, "course is required")
	case strings.TrimSpace(req.Institution) == "":
		return dErrors.New(dErrors.CodeBadRequest, "institution is required")
	}
	return nil
}
