// Package memory is the default audit store when no database is configured.
package memory

import (
	"context"
	"sync"

	"certledger/internal/audit"
)

// Store keeps events in memory, ordered by arrival.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
	byCert map[string][]int
}

func NewStore() *Store {
	return &Store{byCert: make(map[string][]int)}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.byCert[event.CertificateID] = append(s.byCert[event.CertificateID], len(s.events)-1)
	return nil
}

func (s *Store) ListByCertificate(ctx context.Context, certificateID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.byCert[certificateID]
	out := make([]audit.Event, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.events[i])
	}
	return out, nil
}
