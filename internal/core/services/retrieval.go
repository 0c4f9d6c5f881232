package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/logger"
	"github.com/custodia-labs/lorekeeper/internal/vector"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// Retrieval defaults used when settings leave a value unset.
const (
	defaultK            = 5
	defaultEmbedTimeout = 10 * time.Second
)

// candidatePool is the set of sections one ranking runs over.
type candidatePool struct {
	label    string
	sections []domain.Section
}

// RetrievalService ranks sections of the live snapshot for a query.
// It holds no per-query state; results are never cached.
type RetrievalService struct {
	corpus       *CorpusService
	embedder     driven.EmbeddingService
	router       driving.RouterService
	events       driven.EventSink
	metrics      driven.MetricsRecorder
	settings     domain.RetrievalSettings
	embedTimeout time.Duration
	now          func() time.Time
}

// NewRetrievalService creates a retrieval service.
// The router is optional; without one every query searches the full corpus.
func NewRetrievalService(
	corpus *CorpusService,
	embedder driven.EmbeddingService,
	router driving.RouterService,
	settings domain.RetrievalSettings,
) *RetrievalService {
	if !settings.Strategy.IsValid() {
		settings.Strategy = domain.StrategyDense
	}
	if settings.K <= 0 {
		settings.K = defaultK
	}
	if settings.RRFK <= 0 {
		settings.RRFK = domain.DefaultRRFK
	}
	return &RetrievalService{
		corpus:       corpus,
		embedder:     embedder,
		router:       router,
		settings:     settings,
		embedTimeout: defaultEmbedTimeout,
		now:          time.Now,
	}
}

// SetEventSink sets the sink receiving progress events.
func (s *RetrievalService) SetEventSink(sink driven.EventSink) {
	s.events = sink
}

// SetMetrics sets the metrics recorder.
func (s *RetrievalService) SetMetrics(m driven.MetricsRecorder) {
	s.metrics = m
}

// SetEmbedTimeout bounds query embedding when options carry no timeout.
func (s *RetrievalService) SetEmbedTimeout(d time.Duration) {
	if d > 0 {
		s.embedTimeout = d
	}
}

// Retrieve ranks sections for a query.
func (s *RetrievalService) Retrieve(
	ctx context.Context, query domain.Query, opts domain.RetrieveOptions,
) (*domain.RetrievalResult, error) {
	start := s.now()
	logger.Section("Retrieval")

	if strings.TrimSpace(query.RawText) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if opts.K < 0 {
		return nil, fmt.Errorf("%w: k must not be negative", domain.ErrInvalidInput)
	}
	k := opts.K
	if k == 0 {
		k = s.settings.K
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = s.settings.Strategy
	}
	if !strategy.IsValid() {
		return nil, fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidInput, strategy)
	}

	snap := s.corpus.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("retrieve: %w", domain.ErrNoSnapshot)
	}

	if query.ID == "" {
		query.ID = uuid.NewString()
	}
	logger.Debug("Query %s: %q (strategy=%s, k=%d)", query.ID, query.RawText, strategy, k)

	ev := newEmitter(s.events, query.ID, s.now)
	result := &domain.RetrievalResult{
		QueryID:  query.ID,
		Strategy: strategy,
		Hits:     []domain.Hit{},
	}

	pools := s.resolvePools(ctx, ev, snap, query, opts.Scope, result)
	if len(pools) == 0 {
		logger.Debug("Empty scope, returning no results")
		return s.finish(ctx, ev, result, start), nil
	}

	text := query.RetrievalText(s.settings.ContextTurns)

	var queryVec []float32
	if strategy.RequiresEmbedding() {
		vec, err := s.embedQuery(ctx, ev, text, opts.Timeout)
		if err != nil {
			return nil, err
		}
		if err := s.checkQueryVector(snap, vec); err != nil {
			ev.emit(ctx, domain.StageEmbed, domain.StatusFailed, map[string]any{"error": err.Error()})
			return nil, fmt.Errorf("retrieve: %w", err)
		}
		queryVec = vec
	}

	var lexScores map[string]float64
	if strategy != domain.StrategyDense {
		lexScores = snap.Lexical().Score(snap.Lexical().Tokenize(text))
		logger.Debug("Lexical matches: %d", len(lexScores))
	}

	ev.emit(ctx, domain.StageRank, domain.StatusStarted, map[string]any{"pools": len(pools), "strategy": string(strategy)})
	rankings := make([][]scoredSection, len(pools))
	g, gctx := errgroup.WithContext(ctx)
	for i, pool := range pools {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rankings[i] = s.rank(pool.sections, strategy, queryVec, lexScores)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		ev.emit(ctx, domain.StageRank, domain.StatusFailed, map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("rank: %w", err)
	}
	ev.emit(ctx, domain.StageRank, domain.StatusCompleted, nil)

	final := rankings[0]
	if len(rankings) > 1 {
		final = reciprocalRankFusion(s.settings.RRFK, rankings...)
		logger.Debug("Fused %d scoped rankings into %d candidates", len(rankings), len(final))
		ev.emit(ctx, domain.StageFuse, domain.StatusCompleted, map[string]any{"rankings": len(rankings), "candidates": len(final)})
	}

	if len(final) > k {
		final = final[:k]
	}
	for i, entry := range final {
		sec, _ := snap.Get(entry.id)
		hit := domain.Hit{SectionID: entry.id, Score: entry.score, Rank: i + 1}
		if sec != nil {
			hit.Section = *sec
			hit.Section.Embedding = nil
		}
		result.Hits = append(result.Hits, hit)
	}

	return s.finish(ctx, ev, result, start), nil
}

// resolvePools turns the caller's scope, or the router's decision, into
// candidate pools. Pools without sections are dropped.
func (s *RetrievalService) resolvePools(
	ctx context.Context,
	ev *emitter,
	snap *Snapshot,
	query domain.Query,
	scope *domain.Scope,
	result *domain.RetrievalResult,
) []candidatePool {
	var categories []domain.Category
	full := false

	switch {
	case scope != nil:
		full = scope.All
		categories = scope.Categories
		logger.Debug("Explicit scope: all=%t categories=%v", full, categories)
	case s.router != nil:
		ev.emit(ctx, domain.StageRoute, domain.StatusStarted, nil)
		decision := s.router.Route(ctx, query)
		result.Routing = &decision
		full = decision.IncludesFullCorpus
		categories = decision.Scopes

		status := domain.StatusCompleted
		payload := map[string]any{"scopes": decision.Scopes, "full_corpus": decision.IncludesFullCorpus}
		if decision.Degraded {
			status = domain.StatusDegraded
			payload["reason"] = decision.DegradedReason
		}
		ev.emit(ctx, domain.StageRoute, status, payload)
	default:
		full = true
	}

	var pools []candidatePool
	seen := make(map[domain.Category]bool, len(categories))
	for _, c := range categories {
		if seen[c] {
			continue
		}
		seen[c] = true
		if secs := snap.Filter(c); len(secs) > 0 {
			pools = append(pools, candidatePool{label: string(c), sections: secs})
		}
	}
	if full && snap.Len() > 0 {
		pools = append(pools, candidatePool{label: "all", sections: snap.Sections()})
	}
	return pools
}

// embedQuery embeds the query text under a timeout.
func (s *RetrievalService) embedQuery(ctx context.Context, ev *emitter, text string, timeout time.Duration) ([]float32, error) {
	if s.embedder == nil {
		return nil, domain.NewEmbeddingUnavailable("", fmt.Errorf("no embedding service configured"))
	}
	if timeout <= 0 {
		timeout = s.embedTimeout
	}

	ev.emit(ctx, domain.StageEmbed, domain.StatusStarted, map[string]any{"model": s.embedder.ModelName()})
	ectx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vec, err := s.embedder.Embed(ectx, text)
	if err != nil {
		err = domain.NewEmbeddingUnavailable(s.embedder.ModelName(), err)
		logger.Warn("Query embedding failed: %v", err)
		if s.metrics != nil {
			s.metrics.IncEmbeddingError(s.embedder.ModelName())
		}
		ev.emit(ctx, domain.StageEmbed, domain.StatusFailed, map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("embed query: %w", err)
	}
	ev.emit(ctx, domain.StageEmbed, domain.StatusCompleted, map[string]any{"dimensions": len(vec)})
	return vec, nil
}

// checkQueryVector rejects a query embedding that lives in a different space
// from the snapshot's section embeddings.
func (s *RetrievalService) checkQueryVector(snap *Snapshot, vec []float32) error {
	if model := s.embedder.ModelName(); model != snap.Model() {
		return &domain.CorpusIntegrityError{
			Reason: fmt.Sprintf("query embedded with model %q, snapshot uses %q", model, snap.Model()),
		}
	}
	if snap.Dimensions() > 0 && len(vec) != snap.Dimensions() {
		return &domain.CorpusIntegrityError{
			Reason: fmt.Sprintf("query embedding has %d dimensions, snapshot uses %d", len(vec), snap.Dimensions()),
		}
	}
	return nil
}

// rank orders one pool by the strategy.
func (s *RetrievalService) rank(
	sections []domain.Section, strategy domain.Strategy, queryVec []float32, lexScores map[string]float64,
) []scoredSection {
	switch strategy {
	case domain.StrategyLexical:
		return lexicalRanking(sections, lexScores)
	case domain.StrategyHybrid:
		return reciprocalRankFusion(s.settings.RRFK,
			denseRanking(sections, queryVec),
			lexicalRanking(sections, lexScores))
	default:
		return denseRanking(sections, queryVec)
	}
}

// denseRanking orders every section by cosine similarity to the query.
func denseRanking(sections []domain.Section, queryVec []float32) []scoredSection {
	out := make([]scoredSection, len(sections))
	for i := range sections {
		out[i] = scoredSection{id: sections[i].ID, score: vector.Cosine(queryVec, sections[i].Embedding)}
	}
	sortScored(out)
	return out
}

// lexicalRanking orders the sections that matched at least one query term.
func lexicalRanking(sections []domain.Section, scores map[string]float64) []scoredSection {
	out := make([]scoredSection, 0, len(scores))
	for i := range sections {
		if sc, ok := scores[sections[i].ID]; ok && sc > 0 {
			out = append(out, scoredSection{id: sections[i].ID, score: sc})
		}
	}
	sortScored(out)
	return out
}

func (s *RetrievalService) finish(
	ctx context.Context, ev *emitter, result *domain.RetrievalResult, start time.Time,
) *domain.RetrievalResult {
	result.Elapsed = s.now().Sub(start)
	if s.metrics != nil {
		s.metrics.ObserveRetrieval(result.Strategy, result.Elapsed, len(result.Hits))
	}
	ev.emit(ctx, domain.StageComplete, domain.StatusCompleted, map[string]any{
		"hits":       len(result.Hits),
		"elapsed_ms": result.Elapsed.Milliseconds(),
	})
	logger.Debug("Retrieved %d hits in %s", len(result.Hits), result.Elapsed)
	return result
}
