// Package hashing provides a deterministic in-process embedding model based on
// feature hashing. It needs no network or model files, which makes it the
// default for offline use and the reference model for benchmarks.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/textproc"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "hashing-v1"
	DefaultDimensions = 768
)

// Feature weights. Word features dominate; character trigrams give
// morphological overlap ("grapple" ~ "grappling"); bigrams reward phrases.
const (
	wordWeight    = 1.0
	bigramWeight  = 0.5
	trigramWeight = 0.25
)

// Config holds configuration for the hashing model.
type Config struct {
	// Model names the model; vectors are only comparable within one name.
	Model string

	// Dimensions is the vector size (default: 768).
	Dimensions int
}

// EmbeddingService hashes text features into a fixed-size vector.
type EmbeddingService struct {
	model      string
	dimensions int
}

// NewEmbeddingService creates a hashing embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{model: cfg.Model, dimensions: cfg.Dimensions}
}

// Embed generates a unit-length vector for text.
// Text without any indexable term yields the zero vector.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewEmbeddingUnavailable(s.model, err)
	}
	return s.vector(text), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewEmbeddingUnavailable(s.model, fmt.Errorf("batch item %d: %w", i, err))
		}
		out[i] = s.vector(text)
	}
	return out, nil
}

func (s *EmbeddingService) vector(text string) []float32 {
	acc := make([]float64, s.dimensions)
	tokens := textproc.Tokenize(text)

	for _, tok := range tokens {
		s.add(acc, "w:"+tok, wordWeight)
		padded := "#" + tok + "#"
		for i := 0; i+3 <= len(padded); i++ {
			s.add(acc, "c:"+padded[i:i+3], trigramWeight)
		}
	}
	for i := 0; i+1 < len(tokens); i++ {
		s.add(acc, "b:"+tokens[i]+" "+tokens[i+1], bigramWeight)
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	out := make([]float32, s.dimensions)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

// add hashes a feature into a bucket; the top hash bit picks the sign so
// collisions tend to cancel rather than accumulate.
func (s *EmbeddingService) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := sum % uint64(s.dimensions)
	if sum>>63 == 1 {
		acc[idx] -= weight
		return
	}
	acc[idx] += weight
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the model name.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping always succeeds; the model runs in-process.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
