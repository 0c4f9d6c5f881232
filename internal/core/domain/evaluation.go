package domain

import (
	"fmt"
	"time"
)

// Question categories used by the bundled benchmark.
const (
	QuestionRuleMechanics   = "RULE_MECHANICS"
	QuestionDescribeEntity  = "DESCRIBE_ENTITY"
	QuestionCompareEntities = "COMPARE_ENTITIES"
	QuestionCalculateValues = "CALCULATE_VALUES"
	QuestionCombined        = "COMBINED"
)

// EvaluationCase is one labelled benchmark query. Cases are never mutated.
type EvaluationCase struct {
	// ID identifies the case in reports.
	ID string `json:"id" yaml:"id"`

	// Query is the question text.
	Query string `json:"query" yaml:"query"`

	// Category is the question category label used for breakdowns.
	Category string `json:"category" yaml:"category"`

	// ExpectedSectionIDs is the ground-truth relevant set.
	ExpectedSectionIDs []string `json:"expected_section_ids" yaml:"expected_section_ids"`

	// ExpectedScopes optionally labels the corpus categories the router
	// should choose; used for routing accuracy.
	ExpectedScopes []Category `json:"expected_scopes,omitempty" yaml:"expected_scopes,omitempty"`
}

// Validate checks the case is usable.
func (c *EvaluationCase) Validate() error {
	if c.Query == "" {
		return fmt.Errorf("%w: case %q has an empty query", ErrInvalidInput, c.ID)
	}
	if len(c.ExpectedSectionIDs) == 0 {
		return fmt.Errorf("%w: case %q has no expected sections", ErrInvalidInput, c.ID)
	}
	return nil
}

// EvaluationConfig selects the retriever configuration under test.
type EvaluationConfig struct {
	// Label names the configuration in reports, e.g. "section-dense-768".
	Label string `json:"label"`

	// K is the cutoff for MRR and Recall@k.
	K int `json:"k"`

	// Strategy is the retrieval strategy.
	Strategy Strategy `json:"strategy"`

	// UseRouter routes each query; otherwise the full corpus is searched.
	UseRouter bool `json:"use_router"`
}

// LatencyStats summarises per-query wall-clock latency.
type LatencyStats struct {
	Mean time.Duration `json:"mean_ns"`
	P50  time.Duration `json:"p50_ns"`
	P95  time.Duration `json:"p95_ns"`
	Max  time.Duration `json:"max_ns"`
}

// CaseResult is the outcome of one evaluation case.
type CaseResult struct {
	CaseID       string        `json:"case_id"`
	Category     string        `json:"category"`
	Retrieved    []string      `json:"retrieved"`
	FirstRank    int           `json:"first_relevant_rank"`
	Reciprocal   float64       `json:"reciprocal_rank"`
	Recall       float64       `json:"recall"`
	Latency      time.Duration `json:"latency_ns"`
	RoutedScopes []Category    `json:"routed_scopes,omitempty"`
	RoutedOK     *bool         `json:"routed_ok,omitempty"`
}

// CategoryReport aggregates metrics for one question category.
type CategoryReport struct {
	Category  string  `json:"category"`
	Cases     int     `json:"cases"`
	MRR       float64 `json:"mrr"`
	RecallAtK float64 `json:"recall_at_k"`
}

// Report is the output of an evaluation run.
type Report struct {
	Config     EvaluationConfig `json:"config"`
	Cases      int              `json:"cases"`
	MRR        float64          `json:"mrr"`
	RecallAtK  float64          `json:"recall_at_k"`
	Latency    LatencyStats     `json:"latency"`
	ByCategory []CategoryReport `json:"by_category"`

	// RoutingAccuracy is the share of labelled cases whose top routed scope
	// is one of the expected scopes. Nil when no case carries labels.
	RoutingAccuracy *float64 `json:"routing_accuracy,omitempty"`

	Results []CaseResult `json:"results"`
}

// Category returns the breakdown for a question category.
func (r *Report) Category(name string) (CategoryReport, bool) {
	for _, c := range r.ByCategory {
		if c.Category == name {
			return c, true
		}
	}
	return CategoryReport{}, false
}

// WorstCategory returns the category with the lowest MRR (ties by name).
func (r *Report) WorstCategory() (CategoryReport, bool) {
	if len(r.ByCategory) == 0 {
		return CategoryReport{}, false
	}
	worst := r.ByCategory[0]
	for _, c := range r.ByCategory[1:] {
		if c.MRR < worst.MRR || (c.MRR == worst.MRR && c.Category < worst.Category) {
			worst = c
		}
	}
	return worst, true
}
