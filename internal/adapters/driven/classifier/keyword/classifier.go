// Package keyword provides a rule-based query classifier.
package keyword

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/textproc"
)

// Ensure Classifier implements the interface.
var _ driven.Classifier = (*Classifier)(nil)

// Name is the classifier name recorded in routing decisions.
const Name = "keyword"

// Classifier scores categories by how many of their keywords appear in the
// query. Each distinct keyword hit halves the remaining doubt:
// confidence = 1 - 0.5^hits.
type Classifier struct {
	phrases map[domain.Category][][]string
}

// New builds a classifier from category profiles. The category name itself
// counts as a keyword.
func New(profiles []domain.CategoryProfile) *Classifier {
	c := &Classifier{phrases: make(map[domain.Category][][]string, len(profiles))}
	for _, p := range profiles {
		keywords := append([]string{string(p.Category)}, p.Keywords...)
		seen := make(map[string]bool, len(keywords))
		for _, kw := range keywords {
			words := textproc.Words(kw)
			if len(words) == 0 {
				continue
			}
			key := strings.Join(words, " ")
			if seen[key] {
				continue
			}
			seen[key] = true
			c.phrases[p.Category] = append(c.phrases[p.Category], words)
		}
	}
	return c
}

// Classify returns a confidence for every requested category.
func (c *Classifier) Classify(ctx context.Context, query domain.Query, categories []domain.Category) ([]domain.ScopeScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewClassificationUnavailable(Name, err)
	}

	words := textproc.Words(query.ClassificationText())
	scores := make([]domain.ScopeScore, 0, len(categories))
	for _, cat := range categories {
		hits := 0
		for _, phrase := range c.phrases[cat] {
			if containsPhrase(words, phrase) {
				hits++
			}
		}
		scores = append(scores, domain.ScopeScore{
			Category:   cat,
			Confidence: 1 - math.Pow(0.5, float64(hits)),
		})
	}
	return scores, nil
}

// Name identifies the classifier.
func (c *Classifier) Name() string {
	return Name
}

func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 1 {
		return slices.Contains(words, phrase[0])
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		if slices.Equal(words[i:i+len(phrase)], phrase) {
			return true
		}
	}
	return false
}
