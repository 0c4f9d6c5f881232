// Package prototype provides a nearest-exemplar query classifier backed by
// the local embedding model.
package prototype

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/vector"
)

// Ensure Classifier implements the interface.
var _ driven.Classifier = (*Classifier)(nil)

// Name is the classifier name recorded in routing decisions.
const Name = "embedding"

// Classifier embeds each category's description and example queries once,
// then scores a query by its best cosine similarity to any exemplar of the
// category, clamped to [0, 1].
type Classifier struct {
	embedder driven.EmbeddingService
	profiles []domain.CategoryProfile

	mu        sync.Mutex
	exemplars map[domain.Category][][]float32
}

// New creates a prototype classifier.
func New(embedder driven.EmbeddingService, profiles []domain.CategoryProfile) *Classifier {
	return &Classifier{embedder: embedder, profiles: profiles}
}

// Classify returns a confidence for every requested category.
func (c *Classifier) Classify(ctx context.Context, query domain.Query, categories []domain.Category) ([]domain.ScopeScore, error) {
	exemplars, err := c.load(ctx)
	if err != nil {
		return nil, domain.NewClassificationUnavailable(Name, err)
	}

	vec, err := c.embedder.Embed(ctx, query.ClassificationText())
	if err != nil {
		return nil, domain.NewClassificationUnavailable(Name, fmt.Errorf("embed query: %w", err))
	}

	scores := make([]domain.ScopeScore, 0, len(categories))
	for _, cat := range categories {
		best := 0.0
		for _, ex := range exemplars[cat] {
			best = math.Max(best, vector.Cosine(vec, ex))
		}
		scores = append(scores, domain.ScopeScore{Category: cat, Confidence: math.Min(best, 1)})
	}
	return scores, nil
}

// Name identifies the classifier.
func (c *Classifier) Name() string {
	return Name
}

// load embeds the exemplars on first use. A failed load is retried on the
// next call.
func (c *Classifier) load(ctx context.Context) (map[domain.Category][][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exemplars != nil {
		return c.exemplars, nil
	}

	var (
		texts []string
		owner []domain.Category
	)
	for _, p := range c.profiles {
		if d := strings.TrimSpace(p.Description); d != "" {
			texts = append(texts, d)
			owner = append(owner, p.Category)
		}
		for _, ex := range p.Examples {
			if ex = strings.TrimSpace(ex); ex != "" {
				texts = append(texts, ex)
				owner = append(owner, p.Category)
			}
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("no category descriptions or examples configured")
	}

	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed exemplars: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed exemplars: got %d vectors for %d texts", len(vectors), len(texts))
	}

	exemplars := make(map[domain.Category][][]float32, len(c.profiles))
	for i, v := range vectors {
		exemplars[owner[i]] = append(exemplars[owner[i]], v)
	}
	c.exemplars = exemplars
	return exemplars, nil
}
