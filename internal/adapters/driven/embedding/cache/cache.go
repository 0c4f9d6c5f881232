// Package cache provides an LRU decorator for embedding services.
// It caches text embeddings, never retrieval results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// EmbeddingService wraps another embedding service with an LRU cache.
// Entries are keyed by model and text so a model change never serves stale vectors.
type EmbeddingService struct {
	next  driven.EmbeddingService
	cache *lru.Cache[string, []float32]
}

// New wraps next with a cache holding up to size embeddings.
// A size <= 0 returns next unchanged.
func New(next driven.EmbeddingService, size int) (driven.EmbeddingService, error) {
	if size <= 0 {
		return next, nil
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &EmbeddingService{next: next, cache: c}, nil
}

// Embed returns a cached vector or computes and stores a new one.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := s.key(text)
	if v, ok := s.cache.Get(key); ok {
		return cloneVector(v), nil
	}
	v, err := s.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, cloneVector(v))
	return v, nil
}

// EmbedBatch serves cached texts and embeds the rest in one call.
// Duplicate texts in the batch are embedded once.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missing := make(map[string][]int)
	var order []string

	for i, text := range texts {
		if v, ok := s.cache.Get(s.key(text)); ok {
			results[i] = cloneVector(v)
			continue
		}
		if _, seen := missing[text]; !seen {
			order = append(order, text)
		}
		missing[text] = append(missing[text], i)
	}
	if len(order) == 0 {
		return results, nil
	}

	embedded, err := s.next.EmbedBatch(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(order) {
		return nil, fmt.Errorf("embedding cache: received %d embeddings for %d texts", len(embedded), len(order))
	}
	for i, text := range order {
		for _, idx := range missing[text] {
			results[idx] = cloneVector(embedded[i])
		}
		s.cache.Add(s.key(text), cloneVector(embedded[i]))
	}
	return results, nil
}

// Len returns the number of cached embeddings.
func (s *EmbeddingService) Len() int {
	return s.cache.Len()
}

// Dimensions returns the wrapped service's dimensions.
func (s *EmbeddingService) Dimensions() int {
	return s.next.Dimensions()
}

// ModelName returns the wrapped service's model name.
func (s *EmbeddingService) ModelName() string {
	return s.next.ModelName()
}

// Ping delegates to the wrapped service.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close purges the cache and closes the wrapped service.
func (s *EmbeddingService) Close() error {
	s.cache.Purge()
	return s.next.Close()
}

func (s *EmbeddingService) key(text string) string {
	sum := sha256.Sum256([]byte(s.next.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	if src == nil {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}
