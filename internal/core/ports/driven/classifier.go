package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// Classifier scores how likely a query targets each corpus category.
// The variant (keyword rules, local embedding model, remote LLM) is chosen at
// configuration time; all return the same shape.
type Classifier interface {
	// Classify returns one confidence in [0, 1] per category.
	// Backend failures are reported as domain.ClassificationUnavailableError.
	Classify(ctx context.Context, query domain.Query, categories []domain.Category) ([]domain.ScopeScore, error)

	// Name identifies the classifier in routing decisions.
	Name() string
}
