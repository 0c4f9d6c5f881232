package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/classifier/keyword"
	classifierllm "github.com/custodia-labs/lorekeeper/internal/adapters/driven/classifier/llm"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/classifier/prototype"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/embedding/cache"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

type stubLLM struct{}

func (stubLLM) Generate(context.Context, string, driven.GenerateOptions) (string, error) { return "", nil }
func (stubLLM) Chat(context.Context, []driven.ChatMessage, driven.ChatOptions) (string, error) {
	return "{}", nil
}
func (stubLLM) ModelName() string          { return "stub" }
func (stubLLM) Ping(context.Context) error { return nil }
func (stubLLM) Close() error               { return nil }

func TestInitResult_Close_NilServices(t *testing.T) {
	result := &InitResult{}
	result.Close()
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantErr  bool
		wantDims int
	}{
		{name: "nil settings", settings: nil, wantErr: true},
		{name: "hashing defaults", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderHashing}, wantDims: hashing.DefaultDimensions},
		{name: "hashing custom width", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderHashing, Dimensions: 256}, wantDims: 256},
		{name: "ollama known model", settings: &domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama, BaseURL: "http://localhost:11434", Model: "mxbai-embed-large",
		}, wantDims: 1024},
		{name: "ollama unknown model", settings: &domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama, Model: "custom-embed",
		}, wantDims: 768},
		{name: "openai", settings: &domain.EmbeddingSettings{
			Provider: domain.AIProviderOpenAI, APIKey: "sk-test", Model: "text-embedding-3-small",
		}, wantDims: 1536},
		{name: "openai without key", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI}, wantErr: true},
		{name: "anthropic", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"}, wantErr: true},
		{name: "unknown", settings: &domain.EmbeddingSettings{Provider: "cohere"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDims, svc.Dimensions())
			_ = svc.Close()
		})
	}
}

func TestCreateEmbeddingService_Cache(t *testing.T) {
	svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderHashing, CacheSize: 8})
	require.NoError(t, err)
	assert.IsType(t, &cache.EmbeddingService{}, svc)

	svc, err = CreateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderHashing})
	require.NoError(t, err)
	assert.IsType(t, &hashing.EmbeddingService{}, svc)
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.LLMSettings
		wantErr  bool
	}{
		{name: "nil settings", settings: nil, wantErr: true},
		{name: "ollama", settings: &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"}},
		{name: "openai", settings: &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk"}},
		{name: "openai without key", settings: &domain.LLMSettings{Provider: domain.AIProviderOpenAI}, wantErr: true},
		{name: "anthropic", settings: &domain.LLMSettings{Provider: domain.AIProviderAnthropic, APIKey: "ak"}},
		{name: "hashing", settings: &domain.LLMSettings{Provider: domain.AIProviderHashing}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, svc.ModelName())
			_ = svc.Close()
		})
	}
}

func TestCreateClassifier(t *testing.T) {
	profiles := domain.DefaultCategoryProfiles()
	embedder := hashing.NewEmbeddingService(hashing.Config{})

	c, err := CreateClassifier(&domain.RoutingSettings{Classifier: domain.ClassifierKeyword, Categories: profiles}, nil, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &keyword.Classifier{}, c)

	c, err = CreateClassifier(&domain.RoutingSettings{Categories: profiles}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "keyword", c.Name())

	c, err = CreateClassifier(&domain.RoutingSettings{Classifier: domain.ClassifierEmbedding, Categories: profiles}, embedder, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &prototype.Classifier{}, c)

	c, err = CreateClassifier(&domain.RoutingSettings{Classifier: domain.ClassifierLLM, Categories: profiles}, nil, stubLLM{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &classifierllm.Classifier{}, c)

	_, err = CreateClassifier(&domain.RoutingSettings{Classifier: domain.ClassifierEmbedding}, nil, nil, nil)
	assert.Error(t, err)
	_, err = CreateClassifier(&domain.RoutingSettings{Classifier: domain.ClassifierLLM}, embedder, nil, nil)
	assert.Error(t, err)
	_, err = CreateClassifier(&domain.RoutingSettings{Classifier: "oracle"}, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInitialise(t *testing.T) {
	t.Run("defaults work offline", func(t *testing.T) {
		settings := domain.DefaultAppSettings()

		result, err := Initialise(&settings, nil)
		require.NoError(t, err)
		defer result.Close()

		assert.Equal(t, "hashing-v1", result.EmbeddingService.ModelName())
		assert.Nil(t, result.LLMService)
		assert.Equal(t, "keyword", result.Classifier.Name())
		assert.Empty(t, result.Warnings)
	})

	t.Run("llm classifier without llm falls back", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		settings.Routing.Classifier = domain.ClassifierLLM

		result, err := Initialise(&settings, nil)
		require.NoError(t, err)
		assert.Equal(t, "keyword", result.Classifier.Name())
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "llm classifier")
	})

	t.Run("dense retrieval needs a working embedder", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		settings.Embedding.Provider = domain.AIProviderOpenAI

		_, err := Initialise(&settings, nil)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})

	t.Run("lexical retrieval tolerates a broken embedder", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		settings.Embedding.Provider = domain.AIProviderOpenAI
		settings.Retrieval.Strategy = domain.StrategyLexical

		result, err := Initialise(&settings, nil)
		require.NoError(t, err)
		assert.Nil(t, result.EmbeddingService)
		assert.Len(t, result.Warnings, 1)
	})
}

func TestValidateConfig_Unconfigured(t *testing.T) {
	assert.NoError(t, ValidateEmbeddingConfig(nil))
	assert.NoError(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic}))
	assert.NoError(t, ValidateLLMConfig(nil))
	assert.NoError(t, ValidateLLMConfig(&domain.LLMSettings{}))

	svc, err := CreateAndValidateLLMService(&domain.LLMSettings{})
	assert.NoError(t, err)
	assert.Nil(t, svc)
}

func TestValidateEmbeddingConfig_Hashing(t *testing.T) {
	assert.NoError(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{Provider: domain.AIProviderHashing}))
}
