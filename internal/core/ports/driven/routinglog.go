package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// RoutingLogStore keeps an audit trail of routing decisions.
// Annotated records form classifier training and feedback datasets.
type RoutingLogStore interface {
	// Record appends a routing record.
	Record(ctx context.Context, record *domain.RoutingRecord) error

	// List returns the most recent records, newest first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]domain.RoutingRecord, error)

	// Annotate stores the scopes an operator says should have been chosen.
	// Returns domain.ErrNotFound for an unknown record.
	Annotate(ctx context.Context, id string, correct []domain.Category) error
}
