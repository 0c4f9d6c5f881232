package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Ensure RoutingLogStore implements the interface.
var _ driven.RoutingLogStore = (*RoutingLogStore)(nil)

// RoutingLogStore is an in-memory implementation of driven.RoutingLogStore.
type RoutingLogStore struct {
	mu      sync.RWMutex
	records []domain.RoutingRecord
}

// NewRoutingLogStore creates a new in-memory routing log.
func NewRoutingLogStore() *RoutingLogStore {
	return &RoutingLogStore{}
}

// Record appends a routing record.
func (s *RoutingLogStore) Record(_ context.Context, record *domain.RoutingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *record)
	return nil
}

// List returns the most recent records, newest first.
func (s *RoutingLogStore) List(_ context.Context, limit int) ([]domain.RoutingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.RoutingRecord, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Annotate stores the scopes an operator says should have been chosen.
func (s *RoutingLogStore) Annotate(_ context.Context, id string, correct []domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].CorrectScopes = append([]domain.Category(nil), correct...)
			return nil
		}
	}
	return domain.ErrNotFound
}
