package domain

import (
	"sort"
	"time"
)

// ScopeScore is a classifier's confidence that a query targets a category.
type ScopeScore struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// SortScopeScores orders scores by confidence descending, ties by category name.
func SortScopeScores(scores []ScopeScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Confidence != scores[j].Confidence {
			return scores[i].Confidence > scores[j].Confidence
		}
		return scores[i].Category < scores[j].Category
	})
}

// RoutingDecision records which corpus scopes a query is retrieved against and why.
// All classifier scores are kept so the decision can be audited later.
type RoutingDecision struct {
	// QueryID correlates the decision with the query.
	QueryID string `json:"query_id"`

	// Scores holds every category confidence reported by the classifier,
	// sorted by confidence descending.
	Scores []ScopeScore `json:"scores"`

	// Scopes are the categories selected for retrieval.
	Scopes []Category `json:"scopes"`

	// IncludesFullCorpus adds an unscoped ranking over all sections.
	IncludesFullCorpus bool `json:"includes_full_corpus"`

	// Degraded is set when the classifier failed and the router fell back
	// to the full corpus.
	Degraded bool `json:"degraded"`

	// DegradedReason explains a degraded decision.
	DegradedReason string `json:"degraded_reason,omitempty"`

	// Classifier names the backend that produced Scores.
	Classifier string `json:"classifier"`

	// Threshold is the fallback threshold in force for this decision.
	Threshold float64 `json:"threshold"`

	// DecidedAt is when the decision was made.
	DecidedAt time.Time `json:"decided_at"`
}

// TopScore returns the highest scoring category, if any.
func (d *RoutingDecision) TopScore() (ScopeScore, bool) {
	if len(d.Scores) == 0 {
		return ScopeScore{}, false
	}
	return d.Scores[0], true
}

// ConfidenceFor returns the confidence reported for a category (0 when absent).
func (d *RoutingDecision) ConfidenceFor(c Category) float64 {
	for _, s := range d.Scores {
		if s.Category == c {
			return s.Confidence
		}
	}
	return 0
}

// FullCorpusDecision builds a decision that covers every section.
func FullCorpusDecision(queryID, classifier, reason string, at time.Time) RoutingDecision {
	return RoutingDecision{
		QueryID:            queryID,
		Scores:             []ScopeScore{},
		Scopes:             []Category{},
		IncludesFullCorpus: true,
		Degraded:           reason != "",
		DegradedReason:     reason,
		Classifier:         classifier,
		DecidedAt:          at,
	}
}

// RoutingRecord is an audit-log entry for one routing decision.
// Records feed routing feedback and classifier training datasets.
type RoutingRecord struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`

	// QueryText is the normalised query text (raw text when no normaliser ran).
	QueryText string `json:"query_text"`

	// Decision is the decision that was made.
	Decision RoutingDecision `json:"decision"`

	// CorrectScopes is an operator annotation of the scopes that should have
	// been chosen. Empty until annotated.
	CorrectScopes []Category `json:"correct_scopes,omitempty"`

	// CreatedAt is when the record was written.
	CreatedAt time.Time `json:"created_at"`
}
