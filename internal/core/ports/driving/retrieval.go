package driving

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// RetrievalService ranks corpus sections for a query.
// This is the single call the response-generation stage needs.
type RetrievalService interface {
	// Retrieve returns the ranked sections for a query.
	// An empty result (no hits) is not an error.
	Retrieve(ctx context.Context, query domain.Query, opts domain.RetrieveOptions) (*domain.RetrievalResult, error)
}

// RouterService decides which corpus scopes a query is retrieved against.
type RouterService interface {
	// Route classifies a query. It never fails: when the classifier is
	// unavailable the decision covers the full corpus and is marked degraded.
	Route(ctx context.Context, query domain.Query) domain.RoutingDecision

	// Categories returns the routable categories.
	Categories() []domain.Category
}

// EvaluationService runs a labelled benchmark against a retriever configuration.
type EvaluationService interface {
	Evaluate(ctx context.Context, cases []domain.EvaluationCase, cfg domain.EvaluationConfig) (*domain.Report, error)
}

// CorpusService manages the live corpus snapshot.
type CorpusService interface {
	// Build embeds, validates and atomically publishes sections.
	// On failure the previous snapshot stays live.
	Build(ctx context.Context, sections []domain.Section) error

	// Rebuild loads sections from the configured source and builds them.
	Rebuild(ctx context.Context) error

	// Get returns a section by ID or domain.ErrNotFound.
	Get(id string) (*domain.Section, error)

	// Filter returns the sections in the given categories, or all sections
	// when none are given.
	Filter(categories ...domain.Category) []domain.Section

	// Stats describes the live snapshot.
	Stats() domain.CorpusStats
}

// RoutingLogService exposes the routing audit log.
type RoutingLogService interface {
	List(ctx context.Context, limit int) ([]domain.RoutingRecord, error)
	Annotate(ctx context.Context, id string, correct []domain.Category) error
}
