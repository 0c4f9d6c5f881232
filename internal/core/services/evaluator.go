package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Ensure EvaluationService implements the interface.
var _ driving.EvaluationService = (*EvaluationService)(nil)

const uncategorized = "UNCATEGORIZED"

// EvaluationService scores a retriever configuration against labelled cases.
type EvaluationService struct {
	retriever driving.RetrievalService
	now       func() time.Time
}

// NewEvaluationService creates an evaluator over a retriever.
func NewEvaluationService(retriever driving.RetrievalService) *EvaluationService {
	return &EvaluationService{retriever: retriever, now: time.Now}
}

// Evaluate runs every case and aggregates MRR, Recall@k and latency.
// Hits on sub-section chunks count for their parent section.
func (s *EvaluationService) Evaluate(
	ctx context.Context, cases []domain.EvaluationCase, cfg domain.EvaluationConfig,
) (*domain.Report, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("%w: no evaluation cases", domain.ErrInvalidInput)
	}
	for i := range cases {
		if err := cases[i].Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.K < 0 {
		return nil, fmt.Errorf("%w: k must not be negative", domain.ErrInvalidInput)
	}
	if cfg.K == 0 {
		cfg.K = defaultK
	}
	if cfg.Strategy != "" && !cfg.Strategy.IsValid() {
		return nil, fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidInput, cfg.Strategy)
	}
	logger.Section(fmt.Sprintf("Evaluation (%d cases, k=%d)", len(cases), cfg.K))

	report := &domain.Report{
		Cases:   len(cases),
		Results: make([]domain.CaseResult, 0, len(cases)),
	}

	routed, routedOK := 0, 0
	for i := range cases {
		c := &cases[i]
		result, used, err := s.runCase(ctx, c, cfg)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c.ID, err)
		}
		if cfg.Strategy == "" && used != "" {
			// Pin the retriever's default so every case runs the same strategy.
			cfg.Strategy = used
		}
		if result.RoutedOK != nil {
			routed++
			if *result.RoutedOK {
				routedOK++
			}
		}
		report.Results = append(report.Results, result)
		logger.Debug("Case %s: rank=%d recall=%.2f latency=%s", c.ID, result.FirstRank, result.Recall, result.Latency)
	}

	if cfg.Label == "" {
		cfg.Label = evaluationLabel(cfg)
	}
	report.Config = cfg

	report.MRR, report.RecallAtK = meanScores(report.Results)
	report.Latency = latencyStats(report.Results)
	report.ByCategory = categoryBreakdown(report.Results)
	if routed > 0 {
		acc := float64(routedOK) / float64(routed)
		report.RoutingAccuracy = &acc
	}

	logger.Info("%s: MRR %.3f, Recall@%d %.3f over %d cases", cfg.Label, report.MRR, cfg.K, report.RecallAtK, report.Cases)
	return report, nil
}

// evaluationLabel names a configuration after the strategy that ran.
func evaluationLabel(cfg domain.EvaluationConfig) string {
	strategy := cfg.Strategy.String()
	if strategy == "" {
		strategy = "default"
	}
	return fmt.Sprintf("%s-k%d", strategy, cfg.K)
}

// runCase retrieves one case and scores it. It also returns the strategy the
// retriever reported using.
func (s *EvaluationService) runCase(
	ctx context.Context, c *domain.EvaluationCase, cfg domain.EvaluationConfig,
) (domain.CaseResult, domain.Strategy, error) {
	opts := domain.RetrieveOptions{K: cfg.K, Strategy: cfg.Strategy}
	if !cfg.UseRouter {
		opts.Scope = &domain.Scope{All: true}
	}

	start := s.now()
	res, err := s.retriever.Retrieve(ctx, domain.Query{ID: "eval-" + c.ID, RawText: c.Query}, opts)
	latency := s.now().Sub(start)
	if err != nil {
		return domain.CaseResult{}, "", err
	}

	category := c.Category
	if category == "" {
		category = uncategorized
	}
	out := domain.CaseResult{
		CaseID:    c.ID,
		Category:  category,
		Retrieved: resolveRoots(res.Hits),
		Latency:   latency,
	}

	expected := make(map[string]bool, len(c.ExpectedSectionIDs))
	for _, id := range c.ExpectedSectionIDs {
		expected[id] = true
	}
	found := 0
	for i, id := range out.Retrieved {
		if !expected[id] {
			continue
		}
		found++
		if out.FirstRank == 0 {
			out.FirstRank = i + 1
			out.Reciprocal = 1.0 / float64(i+1)
		}
	}
	out.Recall = float64(found) / float64(len(expected))

	if cfg.UseRouter && res.Routing != nil {
		out.RoutedScopes = res.Routing.Scopes
		if len(c.ExpectedScopes) > 0 {
			ok := false
			if len(res.Routing.Scopes) > 0 {
				for _, want := range c.ExpectedScopes {
					if res.Routing.Scopes[0] == want {
						ok = true
						break
					}
				}
			}
			out.RoutedOK = &ok
		}
	}
	return out, res.Strategy, nil
}

// resolveRoots maps hits to their root section IDs, keeping the first
// occurrence of each.
func resolveRoots(hits []domain.Hit) []string {
	out := make([]string, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for i := range hits {
		id := hits[i].SectionID
		if hits[i].Section.ID != "" {
			id = hits[i].Section.RootID()
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func meanScores(results []domain.CaseResult) (mrr, recall float64) {
	if len(results) == 0 {
		return 0, 0
	}
	for _, r := range results {
		mrr += r.Reciprocal
		recall += r.Recall
	}
	n := float64(len(results))
	return mrr / n, recall / n
}

func categoryBreakdown(results []domain.CaseResult) []domain.CategoryReport {
	groups := make(map[string][]domain.CaseResult)
	for _, r := range results {
		groups[r.Category] = append(groups[r.Category], r)
	}

	out := make([]domain.CategoryReport, 0, len(groups))
	for name, rs := range groups {
		mrr, recall := meanScores(rs)
		out = append(out, domain.CategoryReport{Category: name, Cases: len(rs), MRR: mrr, RecallAtK: recall})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// latencyStats uses nearest-rank percentiles.
func latencyStats(results []domain.CaseResult) domain.LatencyStats {
	if len(results) == 0 {
		return domain.LatencyStats{}
	}
	lat := make([]time.Duration, len(results))
	var total time.Duration
	for i, r := range results {
		lat[i] = r.Latency
		total += r.Latency
	}
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })

	return domain.LatencyStats{
		Mean: total / time.Duration(len(lat)),
		P50:  percentile(lat, 50),
		P95:  percentile(lat, 95),
		Max:  lat[len(lat)-1],
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
