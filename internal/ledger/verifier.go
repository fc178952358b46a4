package ledger

import (
	"context"
	"math/big"
	"time"

	"certledger/internal/certificate/models"
	dErrors "certledger/pkg/domain-errors"
)

// Caller is the read-only slice of the ledger Client the Verifier needs.
type Caller interface {
	Call(ctx context.Context, out *[]any, method string, args ...any) error
}

// Verifier performs the registry's read-only lookup. The contract signals
// absence with a zero-valued record; Verify translates that sentinel into an
// explicit Found flag instead of leaking empty strings to callers.
type Verifier struct {
	backend Caller
}

func NewVerifier(backend Caller) *Verifier {
	return &Verifier{backend: backend}
}

// Verify queries the registry for an identifier. Never mutates state, never
// costs a fee, never blocks on confirmation.
func (v *Verifier) Verify(ctx context.Context, id, tag string) (models.VerificationResult, error) {
	var out []any
	if err := v.backend.Call(ctx, &out, "verifyCertificate", id, tag); err != nil {
		return models.VerificationResult{}, err
	}

	if len(out) != 5 {
		return models.VerificationResult{}, dErrors.Newf(dErrors.CodeVerification,
			"verifyCertificate returned %d values, want 5", len(out))
	}
	valid, ok0 := out[0].(bool)
	student, ok1 := out[1].(string)
	course, ok2 := out[2].(string)
	institution, ok3 := out[3].(string)
	issueDate, ok4 := out[4].(*big.Int)
	if !ok0 || !ok1 || !ok2 || !ok3 || !ok4 || issueDate == nil {
		return models.VerificationResult{}, dErrors.New(dErrors.CodeVerification,
			"verifyCertificate returned a malformed record")
	}

	// A cleared valid flag or an empty student field is the contract's
	// "no such record" sentinel.
	if !valid || student == "" {
		return models.VerificationResult{}, nil
	}

	return models.VerificationResult{
		Found:       true,
		Student:     student,
		Course:      course,
		Institution: institution,
		IssueDate:   time.Unix(issueDate.Int64(), 0).UTC(),
	}, nil
}
