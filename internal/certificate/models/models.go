// Package models holds the certificate pipeline's data types. The ledger
// record is authoritative; everything else here is derived from it.
package models

import "time"

// CertificateRecord is the canonical record written to the ledger. ID is
// immutable once the ledger accepts it.
type CertificateRecord struct {
	ID           string
	Student      string
	Course       string
	Institution  string
	IssueDate    time.Time
	IntegrityTag string
}

// TransactionReceipt is produced once per successful submission.
type TransactionReceipt struct {
	TxHash      string
	BlockNumber uint64
	Confirmed   bool
}

// VerificationResult is the verifier's translation of the ledger's
// sentinel-based absence: Found is explicit, and field values are only
// meaningful when Found is true.
type VerificationResult struct {
	Found       bool
	Student     string
	Course      string
	Institution string
	IssueDate   time.Time
}

// IssuanceResult is returned by the issuance orchestrator.
// AuthoritativeDate distinguishes a ledger-read issue date from the local
// fallback used when the post-submission read lags.
type IssuanceResult struct {
	ID                string
	TxHash            string
	BlockNumber       uint64
	ArtifactPath      string
	IssueDate         time.Time
	AuthoritativeDate bool
}

// LookupResult is returned by the verification orchestrator. Found == false
// is a normal terminal result, not an error.
type LookupResult struct {
	Found        bool
	Record       CertificateRecord
	ArtifactPath string
}
