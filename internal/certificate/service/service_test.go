package service_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certledger/internal/audit"
	"certledger/internal/audit/store/memory"
	"certledger/internal/certificate/ident"
	"certledger/internal/certificate/models"
	"certledger/internal/certificate/service"
	"certledger/internal/document"
	"certledger/internal/platform/logger"
	dErrors "certledger/pkg/domain-errors"
)

// fakeLedger plays both submitter and verifier over an in-memory record map,
// so issue-then-verify round trips behave like a mined contract.
type fakeLedger struct {
	mu      sync.Mutex
	records map[string]models.CertificateRecord
	minedAt time.Time
	blocks  uint64

	submitErr   error
	pendingHash string
	verifyErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		records: make(map[string]models.CertificateRecord),
		minedAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}
}

func (f *fakeLedger) IssueCertificate(ctx context.Context, rec models.CertificateRecord) (models.TransactionReceipt, error) {
	if f.submitErr != nil {
		return models.TransactionReceipt{}, f.submitErr
	}
	if f.pendingHash != "" {
		return models.TransactionReceipt{TxHash: f.pendingHash},
			dErrors.New(dErrors.CodePending, "transaction not mined before deadline")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.IssueDate = f.minedAt
	f.records[rec.ID] = rec
	f.blocks++
	return models.TransactionReceipt{
		TxHash:      fmt.Sprintf("0xfeed%012d", f.blocks),
		BlockNumber: f.blocks,
		Confirmed:   true,
	}, nil
}

func (f *fakeLedger) Verify(ctx context.Context, id, tag string) (models.VerificationResult, error) {
	if f.verifyErr != nil {
		return models.VerificationResult{}, f.verifyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return models.VerificationResult{}, nil
	}
	return models.VerificationResult{
		Found:       true,
		Student:     rec.Student,
		Course:      rec.Course,
		Institution: rec.Institution,
		IssueDate:   rec.IssueDate,
	}, nil
}

type textRenderer struct{}

func (textRenderer) Render(w io.Writer, doc document.Document) error {
	_, err := fmt.Fprintf(w, "%s|%s|%s|%s", doc.Student, doc.Course, doc.Institution, doc.ID)
	return err
}

func newService(t *testing.T, ledger *fakeLedger) (*service.Service, *audit.Publisher) {
	t.Helper()
	docs, err := document.NewCache(t.TempDir(), textRenderer{})
	require.NoError(t, err)
	pub := audit.NewPublisher(memory.NewStore(), nil, logger.New())
	svc := service.New(ledger, ledger, docs, pub, nil, logger.New(), 5*time.Second)
	return svc, pub
}

func issueReq() service.IssueRequest {
	return service.IssueRequest{
		Student:     "Grace Hopper",
		Course:      "Compiler Construction",
		Institution: "Yale University",
	}
}

func TestIssue_ConfirmedEndToEnd(t *testing.T) {
	ledger := newFakeLedger()
	svc, pub := newService(t, ledger)

	result, err := svc.Issue(context.Background(), issueReq())
	require.NoError(t, err)

	assert.True(t, ident.Valid(result.ID))
	assert.NotEmpty(t, result.TxHash)
	assert.Equal(t, uint64(1), result.BlockNumber)

	// The read-back supplies the ledger timestamp, not the local clock.
	assert.True(t, result.AuthoritativeDate)
	assert.True(t, result.IssueDate.Equal(ledger.minedAt))

	content, err := os.ReadFile(result.ArtifactPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Grace Hopper")
	assert.Contains(t, string(content), result.ID)

	events, err := pub.List(context.Background(), result.ID)
	require.NoError(t, err)
	actions := make([]audit.Action, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, audit.ActionArtifactRendered)
	assert.Contains(t, actions, audit.ActionCertificateIssued)
}

func TestIssue_ReadBackLagFallsBackToLocalDate(t *testing.T) {
	ledger := newFakeLedger()
	svc, _ := newService(t, ledger)

	ledger.verifyErr = dErrors.New(dErrors.CodeConnectivity, "node went away")
	before := time.Now().UTC()

	result, err := svc.Issue(context.Background(), issueReq())
	require.NoError(t, err)

	assert.False(t, result.AuthoritativeDate)
	assert.False(t, result.IssueDate.Before(before))
	assert.NotEmpty(t, result.ArtifactPath)
}

func TestIssue_ValidationRejectsBlankFields(t *testing.T) {
	svc, _ := newService(t, newFakeLedger())

	for _, req := range []service.IssueRequest{
		{Course: "C", Institution: "I"},
		{Student: "S", Institution: "I"},
		{Student: "S", Course: "C"},
		{Student: "   ", Course: "C", Institution: "I"},
	} {
		_, err := svc.Issue(context.Background(), req)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest), "req %+v", req)
	}
}

func TestIssue_SubmissionFailureAbortsBeforeArtifact(t *testing.T) {
	ledger := newFakeLedger()
	ledger.submitErr = dErrors.New(dErrors.CodeSubmission, "execution reverted")
	svc, _ := newService(t, ledger)

	result, err := svc.Issue(context.Background(), issueReq())
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeSubmission))
	assert.Empty(t, result.ID)
	assert.Empty(t, result.ArtifactPath)
}

func TestIssue_PendingPreservesHash(t *testing.T) {
	ledger := newFakeLedger()
	ledger.pendingHash = "0xdeadbeef"
	svc, pub := newService(t, ledger)

	result, err := svc.Issue(context.Background(), issueReq())
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodePending))
	assert.False(t, dErrors.Is(err, dErrors.CodeSubmission))

	// The caller gets enough to poll later: the id and the broadcast hash.
	assert.True(t, ident.Valid(result.ID))
	assert.Equal(t, "0xdeadbeef", result.TxHash)
	assert.Empty(t, result.ArtifactPath)

	events, listErr := pub.List(context.Background(), result.ID)
	require.NoError(t, listErr)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionSubmissionPending, events[0].Action)
	assert.Equal(t, "0xdeadbeef", events[0].TxHash)
}

func TestLookup_FoundRendersArtifact(t *testing.T) {
	ledger := newFakeLedger()
	svc, _ := newService(t, ledger)

	issued, err := svc.Issue(context.Background(), issueReq())
	require.NoError(t, err)

	// Blow away the artifact to prove lookup repopulates a cold cache.
	require.NoError(t, os.Remove(issued.ArtifactPath))

	result, err := svc.Lookup(context.Background(), issued.ID)
	require.NoError(t, err)
	require.True(t, result.Found)
	assert.Equal(t, "Grace Hopper", result.Record.Student)
	assert.Equal(t, "Compiler Construction", result.Record.Course)
	assert.Equal(t, "Yale University", result.Record.Institution)
	assert.True(t, result.Record.IssueDate.Equal(ledger.minedAt))

	_, err = os.Stat(result.ArtifactPath)
	assert.NoError(t, err)
}

func TestLookup_AbsentIsNotAnError(t *testing.T) {
	svc, pub := newService(t, newFakeLedger())

	result, err := svc.Lookup(context.Background(), "AAAABBBBCCCCDDDD")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Empty(t, result.ArtifactPath)

	events, err := pub.List(context.Background(), "AAAABBBBCCCCDDDD")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionLookupMiss, events[0].Action)
}

func TestLookup_NormalizesAndValidatesIdentifier(t *testing.T) {
	ledger := newFakeLedger()
	svc, _ := newService(t, ledger)

	issued, err := svc.Issue(context.Background(), issueReq())
	require.NoError(t, err)

	result, err := svc.Lookup(context.Background(), "  "+strings.ToLower(issued.ID)+" ")
	require.NoError(t, err)
	assert.True(t, result.Found)

	for _, bad := range []string{"", "short", "lowercase-not-ok", "AAAABBBBCCCCDDD!", "AAAABBBBCCCCDDDDE"} {
		_, err := svc.Lookup(context.Background(), bad)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest), "id %q", bad)
	}
}

func TestLookup_ConnectivityErrorPropagates(t *testing.T) {
	ledger := newFakeLedger()
	ledger.verifyErr = dErrors.New(dErrors.CodeConnectivity, "rpc unreachable")
	svc, _ := newService(t, ledger)

	_, err := svc.Lookup(context.Background(), "AAAABBBBCCCCDDDD")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeConnectivity))
}
