// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/classifier/keyword"
	classifierllm "github.com/custodia-labs/lorekeeper/internal/adapters/driven/classifier/llm"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/classifier/prototype"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/embedding/cache"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/lorekeeper/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/lorekeeper/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/lorekeeper/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/lorekeeper/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/lorekeeper/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the AI services built from settings.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Classifier       driven.Classifier
	Warnings         []string // Non-fatal issues that caused fallback.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Initialise builds the embedder, the optional LLM and the router classifier.
//
// The embedder is required when the strategy or the classifier needs one and
// failing to build it is an error. A classifier that cannot be built falls
// back to the keyword classifier with a warning.
func Initialise(settings *domain.AppSettings, prompts driven.PromptStore) (*InitResult, error) {
	result := &InitResult{}

	embedder, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		needed := settings.Retrieval.Strategy.RequiresEmbedding() ||
			settings.Routing.Classifier == domain.ClassifierEmbedding
		if needed {
			return nil, domain.NewEmbeddingUnavailable(settings.Embedding.Model, err)
		}
		result.warn("embedding provider unavailable: %v", err)
	} else {
		result.EmbeddingService = embedder
	}

	if settings.LLM.IsConfigured() {
		llm, err := CreateLLMService(&settings.LLM)
		if err != nil {
			result.warn("LLM provider unavailable: %v", err)
		} else {
			result.LLMService = llm
		}
	}

	classifier, err := CreateClassifier(&settings.Routing, result.EmbeddingService, result.LLMService, prompts)
	if err != nil {
		result.warn("%v; using the keyword classifier", err)
		classifier = keyword.New(settings.Routing.Categories)
	}
	result.Classifier = classifier

	return result, nil
}

func (r *InitResult) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	logger.Warn("%s", msg)
}

// CreateClassifier builds the router classifier selected by settings.
// The embedding classifier needs an embedder and the LLM classifier needs an
// LLM; prompts is optional.
func CreateClassifier(
	settings *domain.RoutingSettings,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	prompts driven.PromptStore,
) (driven.Classifier, error) {
	switch settings.Classifier {
	case domain.ClassifierKeyword, "":
		return keyword.New(settings.Categories), nil

	case domain.ClassifierEmbedding:
		if embedder == nil {
			return nil, errors.New("the embedding classifier requires an embedding provider")
		}
		return prototype.New(embedder, settings.Categories), nil

	case domain.ClassifierLLM:
		if llm == nil {
			return nil, errors.New("the llm classifier requires an LLM provider")
		}
		c := classifierllm.New(llm, settings.Categories)
		if prompts != nil {
			c.SetPromptStore(prompts)
		}
		return c, nil

	default:
		return nil, fmt.Errorf("%w: unknown classifier %q", domain.ErrInvalidInput, settings.Classifier)
	}
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns nil when no LLM is configured.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Check the [llm] section of the config",
			domain.ErrLLMUnavailable, err)
	}

	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		return domain.NewEmbeddingUnavailable(settings.Model, err)
	}
	return nil
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the embedding service selected by settings,
// wrapped in an LRU cache when CacheSize is positive.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: no embedding settings", domain.ErrInvalidInput)
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderHashing:
		svc = hashing.NewEmbeddingService(hashing.Config{
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})

	case domain.AIProviderOllama:
		svc = createOllamaEmbedding(settings)

	case domain.AIProviderOpenAI:
		if settings.APIKey == "" {
			return nil, errors.New("openai embeddings need an API key (set embedding.api_key or OPENAI_API_KEY)")
		}
		svc, err = createOpenAIEmbedding(settings)

	case domain.AIProviderAnthropic:
		return nil, errors.New("anthropic does not support embeddings, use hashing, ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", settings.Provider)
	}
	if err != nil {
		return nil, err
	}

	return cache.New(svc, settings.CacheSize)
}

// CreateLLMService creates the LLM service selected by settings.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: no LLM settings", domain.ErrInvalidInput)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			Timeout:           settings.Timeout,
			RequestsPerSecond: settings.RequestsPerSecond,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			Timeout:           settings.Timeout,
			RequestsPerSecond: settings.RequestsPerSecond,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			Timeout:           settings.Timeout,
			RequestsPerSecond: settings.RequestsPerSecond,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", settings.Provider)
	}
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := settings.Dimensions
	if dimensions <= 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:           settings.BaseURL,
		Model:             settings.Model,
		Dimensions:        dimensions,
		RequestsPerSecond: settings.RequestsPerSecond,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:            settings.APIKey,
		BaseURL:           settings.BaseURL,
		Model:             settings.Model,
		Dimensions:        settings.Dimensions,
		RequestsPerSecond: settings.RequestsPerSecond,
	})
}
