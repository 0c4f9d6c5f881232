package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Ensure RouterService implements the interface.
var _ driving.RouterService = (*RouterService)(nil)

const defaultClassifyTimeout = 5 * time.Second

// RouterService picks the corpus scopes a query is retrieved against.
type RouterService struct {
	classifier driven.Classifier
	settings   domain.RoutingSettings
	categories []domain.Category
	normalizer *QueryNormalizer
	log        driven.RoutingLogStore
	metrics    driven.MetricsRecorder
	now        func() time.Time
}

// NewRouterService creates a router over the configured categories.
// A nil classifier routes every query to the full corpus.
func NewRouterService(classifier driven.Classifier, settings domain.RoutingSettings) *RouterService {
	if settings.Timeout <= 0 {
		settings.Timeout = defaultClassifyTimeout
	}
	if settings.MaxScopes <= 0 {
		settings.MaxScopes = 1
	}

	categories := make([]domain.Category, 0, len(settings.Categories))
	seen := make(map[domain.Category]bool)
	for _, p := range settings.Categories {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		categories = append(categories, p.Category)
	}

	return &RouterService{
		classifier: classifier,
		settings:   settings,
		categories: categories,
		normalizer: NewQueryNormalizer(settings.Entities),
		now:        time.Now,
	}
}

// SetRoutingLog enables the routing audit log.
func (r *RouterService) SetRoutingLog(log driven.RoutingLogStore) {
	r.log = log
}

// SetMetrics sets the metrics recorder.
func (r *RouterService) SetMetrics(m driven.MetricsRecorder) {
	r.metrics = m
}

// Categories returns the routable categories in configuration order.
func (r *RouterService) Categories() []domain.Category {
	out := make([]domain.Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// Normalize applies the entity placeholders to text.
func (r *RouterService) Normalize(text string) string {
	return r.normalizer.Normalize(text)
}

// Route classifies a query. Classifier failures degrade to the full corpus.
func (r *RouterService) Route(ctx context.Context, query domain.Query) domain.RoutingDecision {
	if query.ID == "" {
		query.ID = uuid.NewString()
	}
	if query.NormalizedText == "" && r.normalizer.Len() > 0 {
		query.NormalizedText = r.normalizer.Normalize(query.RawText)
	}

	decision := r.classify(ctx, query)

	if r.metrics != nil {
		r.metrics.ObserveRouting(&decision)
	}
	r.record(ctx, query, decision)
	return decision
}

func (r *RouterService) classify(ctx context.Context, query domain.Query) domain.RoutingDecision {
	if r.classifier == nil {
		d := domain.FullCorpusDecision(query.ID, "none", "", r.now())
		d.Threshold = r.settings.FallbackThreshold
		return d
	}
	name := r.classifier.Name()

	if len(r.categories) == 0 {
		d := domain.FullCorpusDecision(query.ID, name, "", r.now())
		d.Threshold = r.settings.FallbackThreshold
		return d
	}

	cctx, cancel := context.WithTimeout(ctx, r.settings.Timeout)
	defer cancel()

	scores, err := r.classifier.Classify(cctx, query, r.Categories())
	if err == nil {
		err = cctx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", r.settings.Timeout, err)
		}
		err = domain.NewClassificationUnavailable(name, err)
		logger.Degraded("router", err.Error())

		d := domain.FullCorpusDecision(query.ID, name, err.Error(), r.now())
		d.Threshold = r.settings.FallbackThreshold
		return d
	}

	return r.decide(query.ID, name, scores)
}

// decide turns classifier scores into scopes.
func (r *RouterService) decide(queryID, classifier string, raw []domain.ScopeScore) domain.RoutingDecision {
	byCat := make(map[domain.Category]float64, len(r.categories))
	for _, s := range raw {
		byCat[s.Category] = clamp01(s.Confidence)
	}

	// Every configured category gets a score; unknown categories are ignored.
	scores := make([]domain.ScopeScore, 0, len(r.categories))
	for _, c := range r.categories {
		scores = append(scores, domain.ScopeScore{Category: c, Confidence: byCat[c]})
	}
	domain.SortScopeScores(scores)

	d := domain.RoutingDecision{
		QueryID:    queryID,
		Scores:     scores,
		Scopes:     []domain.Category{},
		Classifier: classifier,
		Threshold:  r.settings.FallbackThreshold,
		DecidedAt:  r.now(),
	}

	for i, s := range scores {
		if len(d.Scopes) >= r.settings.MaxScopes {
			break
		}
		if s.Confidence <= 0 {
			break
		}
		if i == 0 || s.Confidence >= r.settings.MinScopeConfidence {
			d.Scopes = append(d.Scopes, s.Category)
		}
	}

	top := scores[0].Confidence
	if top < r.settings.FallbackThreshold || len(d.Scopes) == 0 {
		d.IncludesFullCorpus = true
	}

	logger.Debug("Routing %s: scores=%v scopes=%v full=%t", queryID, scores, d.Scopes, d.IncludesFullCorpus)
	return d
}

func (r *RouterService) record(ctx context.Context, query domain.Query, d domain.RoutingDecision) {
	if r.log == nil {
		return
	}
	rec := &domain.RoutingRecord{
		ID:        uuid.NewString(),
		QueryText: query.ClassificationText(),
		Decision:  d,
		CreatedAt: r.now(),
	}
	if err := r.log.Record(ctx, rec); err != nil {
		logger.Warn("Failed to record routing decision: %v", err)
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
