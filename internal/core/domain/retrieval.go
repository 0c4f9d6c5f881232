package domain

import (
	"fmt"
	"time"
)

// Strategy selects how candidate sections are ranked.
type Strategy string

// Available retrieval strategies.
const (
	// StrategyDense ranks by cosine similarity between query and section embeddings.
	StrategyDense Strategy = "dense"

	// StrategyLexical ranks by BM25 keyword score.
	StrategyLexical Strategy = "lexical"

	// StrategyHybrid fuses the dense and lexical rankings with reciprocal rank fusion.
	StrategyHybrid Strategy = "hybrid"
)

// IsValid returns true if the strategy is recognised.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyDense, StrategyLexical, StrategyHybrid:
		return true
	default:
		return false
	}
}

// RequiresEmbedding returns true if this strategy needs an embedding provider.
func (s Strategy) RequiresEmbedding() bool {
	return s == StrategyDense || s == StrategyHybrid
}

// String returns the string representation.
func (s Strategy) String() string {
	return string(s)
}

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(name)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown strategy %q (want dense, lexical or hybrid)", ErrInvalidInput, name)
	}
	return s, nil
}

// DefaultRRFK is the reciprocal rank fusion constant.
const DefaultRRFK = 60

// Scope restricts retrieval to a subset of the corpus.
// A nil *Scope in RetrieveOptions means "ask the router".
type Scope struct {
	// All covers the whole corpus.
	All bool

	// Categories are searched individually and fused.
	Categories []Category
}

// IsEmpty reports whether the scope selects nothing.
func (s *Scope) IsEmpty() bool {
	return !s.All && len(s.Categories) == 0
}

// RetrieveOptions configures a single retrieval.
type RetrieveOptions struct {
	// K is the number of hits to return. Zero uses the configured default.
	K int

	// Strategy overrides the configured default strategy.
	Strategy Strategy

	// Scope bypasses the router when non-nil.
	Scope *Scope

	// Timeout bounds the embedding call. Zero uses the configured default.
	Timeout time.Duration
}

// Hit is one ranked section.
type Hit struct {
	// SectionID identifies the section.
	SectionID string `json:"section_id"`

	// Score is the strategy score (cosine, BM25 or RRF).
	Score float64 `json:"score"`

	// Rank is 1-based.
	Rank int `json:"rank"`

	// Section is the hydrated section for prompt assembly.
	Section Section `json:"section"`
}

// RetrievalResult is the ranked output for one query.
// Hits is never nil; an empty slice means nothing relevant was found.
type RetrievalResult struct {
	// QueryID correlates the result with routing and events.
	QueryID string `json:"query_id"`

	// Strategy is the strategy actually used.
	Strategy Strategy `json:"strategy"`

	// Routing is the router's decision, nil when the caller supplied a scope.
	Routing *RoutingDecision `json:"routing,omitempty"`

	// Hits are ordered by rank.
	Hits []Hit `json:"hits"`

	// Elapsed is the wall-clock retrieval time.
	Elapsed time.Duration `json:"elapsed_ns"`
}

// IsEmpty reports whether no relevant knowledge was found.
func (r *RetrievalResult) IsEmpty() bool {
	return len(r.Hits) == 0
}

// SectionIDs returns the hit IDs in rank order.
func (r *RetrievalResult) SectionIDs() []string {
	ids := make([]string, len(r.Hits))
	for i := range r.Hits {
		ids[i] = r.Hits[i].SectionID
	}
	return ids
}
