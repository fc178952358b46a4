//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certledger/internal/audit"
	"certledger/internal/audit/store/postgres"
	"certledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "certificate_events")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) event(certID string, action audit.Action, at time.Time) audit.Event {
	return audit.Event{
		ID:            uuid.NewString(),
		Timestamp:     at,
		CertificateID: certID,
		Action:        action,
		TxHash:        "0xfeed",
		RequestID:     "req-1",
	}
}

func (s *PostgresStoreSuite) TestAppendAndListOrdering() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	issued := s.event("CERT000000000001", audit.ActionCertificateIssued, base)
	rendered := s.event("CERT000000000001", audit.ActionArtifactRendered, base.Add(time.Second))
	other := s.event("CERT000000000002", audit.ActionLookupMiss, base)

	// Insert out of order; listing must come back by timestamp.
	s.Require().NoError(s.store.Append(ctx, rendered))
	s.Require().NoError(s.store.Append(ctx, issued))
	s.Require().NoError(s.store.Append(ctx, other))

	events, err := s.store.ListByCertificate(ctx, "CERT000000000001")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.ActionCertificateIssued, events[0].Action)
	s.Equal(audit.ActionArtifactRendered, events[1].Action)
	s.Equal("0xfeed", events[0].TxHash)
	s.True(events[0].Timestamp.Equal(base))
}

func (s *PostgresStoreSuite) TestDuplicateIDIsIgnored() {
	ctx := context.Background()
	event := s.event("CERT000000000001", audit.ActionCertificateIssued, time.Now().UTC())

	s.Require().NoError(s.store.Append(ctx, event))
	s.Require().NoError(s.store.Append(ctx, event))

	events, err := s.store.ListByCertificate(ctx, "CERT000000000001")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *PostgresStoreSuite) TestListUnknownCertificateIsEmpty() {
	events, err := s.store.ListByCertificate(context.Background(), "NOSUCHCERT000000")
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *PostgresStoreSuite) TestConcurrentAppends() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			event := s.event("SHARED0000000001", audit.ActionCertificateFound,
				time.Now().UTC().Add(time.Duration(n)*time.Millisecond))
			s.Require().NoError(s.store.Append(ctx, event))
		}(i)
	}
	wg.Wait()

	events, err := s.store.ListByCertificate(ctx, "SHARED0000000001")
	s.Require().NoError(err)
	s.Len(events, goroutines)

	for i := 1; i < len(events); i++ {
		s.False(events[i].Timestamp.Before(events[i-1].Timestamp),
			fmt.Sprintf("events out of order at %d", i))
	}
}
