package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// Ensure RoutingLogService implements the interface.
var _ driving.RoutingLogService = (*RoutingLogService)(nil)

// RoutingLogService exposes routing records for review and annotation.
type RoutingLogService struct {
	store driven.RoutingLogStore
}

// NewRoutingLogService creates a routing log service.
func NewRoutingLogService(store driven.RoutingLogStore) *RoutingLogService {
	return &RoutingLogService{store: store}
}

// List returns the newest records first.
func (s *RoutingLogService) List(ctx context.Context, limit int) ([]domain.RoutingRecord, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidInput)
	}
	records, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list routing records: %w", err)
	}
	return records, nil
}

// Annotate records the scopes that should have been chosen for a decision.
func (s *RoutingLogService) Annotate(ctx context.Context, id string, correct []domain.Category) error {
	if id == "" {
		return fmt.Errorf("%w: record id is required", domain.ErrInvalidInput)
	}
	if len(correct) == 0 {
		return fmt.Errorf("%w: at least one scope is required", domain.ErrInvalidInput)
	}
	if err := s.store.Annotate(ctx, id, correct); err != nil {
		return fmt.Errorf("annotate routing record %s: %w", id, err)
	}
	return nil
}
