package services

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyCorpusPath    = "corpus.path"
	keyCorpusDataDir = "corpus.data_dir"
	keyCorpusWatch   = "corpus.watch"
	keyCorpusGrain   = "corpus.granularity"
	keyCorpusSents   = "corpus.sentences"
	keyCorpusOverlap = "corpus.overlap"

	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"
	keyEmbedDims     = "embedding.dimensions"
	keyEmbedTimeout  = "embedding.timeout"
	keyEmbedCache    = "embedding.cache_size"
	keyEmbedRPS      = "embedding.requests_per_second"

	keyLexicalK1    = "lexical.k1"
	keyLexicalB     = "lexical.b"
	keyLexicalTitle = "lexical.title_weight"

	keyRetrievalStrategy = "retrieval.strategy"
	keyRetrievalK        = "retrieval.k"
	keyRetrievalRRFK     = "retrieval.rrf_k"
	keyRetrievalTurns    = "retrieval.context_turns"

	keyRoutingClassifier = "routing.classifier"
	keyRoutingThreshold  = "routing.fallback_threshold"
	keyRoutingMinConf    = "routing.min_scope_confidence"
	keyRoutingMaxScopes  = "routing.max_scopes"
	keyRoutingTimeout    = "routing.timeout"
	prefixCategories     = "routing.categories"
	prefixEntities       = "routing.entities"

	keyLLMProvider = "llm.provider"
	keyLLMModel    = "llm.model"
	keyLLMBaseURL  = "llm.base_url"
	keyLLMAPIKey   = "llm.api_key"
	keyLLMTimeout  = "llm.timeout"
	keyLLMRPS      = "llm.requests_per_second"
)

// apiKeyEnv names the environment variable consulted when no key is configured.
var apiKeyEnv = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
// Unset or malformed keys take their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Corpus: domain.CorpusSettings{
			Path:    s.getString(keyCorpusPath, d.Corpus.Path),
			DataDir: s.configStore.GetString(keyCorpusDataDir),
			Watch:   s.getBool(keyCorpusWatch, d.Corpus.Watch),

			Granularity:       s.getGranularity(d.Corpus.Granularity),
			SentencesPerChunk: s.getInt(keyCorpusSents, d.Corpus.SentencesPerChunk),
			SentenceOverlap:   s.getInt(keyCorpusOverlap, d.Corpus.SentenceOverlap),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL),
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			Timeout:           s.getDuration(keyEmbedTimeout, d.Embedding.Timeout),
			CacheSize:         s.getInt(keyEmbedCache, d.Embedding.CacheSize),
			RequestsPerSecond: s.configStore.GetFloat(keyEmbedRPS),
		},
		Lexical: domain.LexicalSettings{
			K1:          s.getFloat(keyLexicalK1, d.Lexical.K1),
			B:           s.getFloat(keyLexicalB, d.Lexical.B),
			TitleWeight: s.getInt(keyLexicalTitle, d.Lexical.TitleWeight),
		},
		Retrieval: domain.RetrievalSettings{
			Strategy:     s.getStrategy(d.Retrieval.Strategy),
			K:            s.getInt(keyRetrievalK, d.Retrieval.K),
			RRFK:         s.getInt(keyRetrievalRRFK, d.Retrieval.RRFK),
			ContextTurns: s.getInt(keyRetrievalTurns, d.Retrieval.ContextTurns),
		},
		Routing: domain.RoutingSettings{
			Classifier:         s.getClassifier(d.Routing.Classifier),
			FallbackThreshold:  s.getFloat(keyRoutingThreshold, d.Routing.FallbackThreshold),
			MinScopeConfidence: s.getFloat(keyRoutingMinConf, d.Routing.MinScopeConfidence),
			MaxScopes:          s.getInt(keyRoutingMaxScopes, d.Routing.MaxScopes),
			Timeout:            s.getDuration(keyRoutingTimeout, d.Routing.Timeout),
			Categories:         s.getCategories(d.Routing.Categories),
			Entities:           s.getEntities(),
		},
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider, d.LLM.Provider),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL),
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			Timeout:           s.getDuration(keyLLMTimeout, d.LLM.Timeout),
			RequestsPerSecond: s.configStore.GetFloat(keyLLMRPS),
		},
	}

	// Model defaults depend on the provider, so they are resolved after it.
	settings.Embedding.Model = s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[settings.Embedding.Provider])
	settings.LLM.Model = s.getString(keyLLMModel, domain.DefaultLLMModels()[settings.LLM.Provider])

	settings.Embedding.Dimensions = s.configStore.GetInt(keyEmbedDims)
	if settings.Embedding.Dimensions <= 0 {
		if dims, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
			settings.Embedding.Dimensions = dims
		} else {
			settings.Embedding.Dimensions = d.Embedding.Dimensions
		}
	}

	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = s.envKey(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.envKey(settings.LLM.Provider)
	}

	return settings, nil
}

// Save persists application settings. Categories and entities are written
// as sub-tables; API keys are only written when set.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyCorpusPath, settings.Corpus.Path},
		{keyCorpusDataDir, settings.Corpus.DataDir},
		{keyCorpusWatch, settings.Corpus.Watch},
		{keyCorpusGrain, string(settings.Corpus.Granularity)},
		{keyCorpusSents, settings.Corpus.SentencesPerChunk},
		{keyCorpusOverlap, settings.Corpus.SentenceOverlap},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedTimeout, settings.Embedding.Timeout.String()},
		{keyEmbedCache, settings.Embedding.CacheSize},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyLexicalK1, settings.Lexical.K1},
		{keyLexicalB, settings.Lexical.B},
		{keyLexicalTitle, settings.Lexical.TitleWeight},
		{keyRetrievalStrategy, settings.Retrieval.Strategy.String()},
		{keyRetrievalK, settings.Retrieval.K},
		{keyRetrievalRRFK, settings.Retrieval.RRFK},
		{keyRetrievalTurns, settings.Retrieval.ContextTurns},
		{keyRoutingClassifier, settings.Routing.Classifier.String()},
		{keyRoutingThreshold, settings.Routing.FallbackThreshold},
		{keyRoutingMinConf, settings.Routing.MinScopeConfidence},
		{keyRoutingMaxScopes, settings.Routing.MaxScopes},
		{keyRoutingTimeout, settings.Routing.Timeout.String()},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMTimeout, settings.LLM.Timeout.String()},
		{keyLLMRPS, settings.LLM.RequestsPerSecond},
	}
	if settings.Embedding.APIKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{keyEmbedAPIKey, settings.Embedding.APIKey})
	}
	if settings.LLM.APIKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{keyLLMAPIKey, settings.LLM.APIKey})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	for _, p := range settings.Routing.Categories {
		prefix := prefixCategories + "." + string(p.Category) + "."
		if err := s.configStore.Set(prefix+"description", p.Description); err != nil {
			return fmt.Errorf("save category %s: %w", p.Category, err)
		}
		if err := s.configStore.Set(prefix+"keywords", p.Keywords); err != nil {
			return fmt.Errorf("save category %s: %w", p.Category, err)
		}
		if err := s.configStore.Set(prefix+"examples", p.Examples); err != nil {
			return fmt.Errorf("save category %s: %w", p.Category, err)
		}
	}
	for name, placeholder := range settings.Routing.Entities {
		if err := s.configStore.Set(prefixEntities+"."+name, placeholder); err != nil {
			return fmt.Errorf("save entity %s: %w", name, err)
		}
	}

	return nil
}

// SetStrategy updates the default retrieval strategy.
func (s *SettingsService) SetStrategy(strategy domain.Strategy) error {
	if !strategy.IsValid() {
		return fmt.Errorf("%w: invalid strategy %q", domain.ErrInvalidInput, strategy)
	}
	return s.configStore.Set(keyRetrievalStrategy, strategy.String())
}

// SetClassifier selects the query router backend.
func (s *SettingsService) SetClassifier(kind domain.ClassifierKind) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: invalid classifier %q", domain.ErrInvalidInput, kind)
	}
	return s.configStore.Set(keyRoutingClassifier, kind.String())
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	supported := false
	for _, p := range domain.AllEmbeddingProviders() {
		if p == provider {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.envKey(provider) == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = model
	if model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}
	settings.Embedding.BaseURL = defaultBaseURL(provider, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = apiKey

	// A model change invalidates the configured width.
	if dims, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = dims
	}

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	supported := false
	for _, p := range domain.AllLLMProviders() {
		if p == provider {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: provider %s does not support completions", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.envKey(provider) == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = model
	if model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}
	settings.LLM.BaseURL = defaultBaseURL(provider, settings.LLM.BaseURL)
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// defaultBaseURL keeps a custom URL for local providers and clears it for
// cloud ones.
func defaultBaseURL(provider domain.AIProvider, current string) string {
	switch {
	case provider == domain.AIProviderOllama && current == "":
		return "http://localhost:11434"
	case provider == domain.AIProviderOllama:
		return current
	default:
		return ""
	}
}

// Validate checks that the configured strategy and classifier have the
// providers they need.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if settings.Retrieval.K <= 0 {
		return fmt.Errorf("%w: retrieval.k must be positive", domain.ErrInvalidInput)
	}
	if t := settings.Routing.FallbackThreshold; t < 0 || t > 1 {
		return fmt.Errorf("%w: routing.fallback_threshold must be within [0, 1]", domain.ErrInvalidInput)
	}
	if settings.Lexical.B < 0 || settings.Lexical.B > 1 {
		return fmt.Errorf("%w: lexical.b must be within [0, 1]", domain.ErrInvalidInput)
	}
	if settings.Corpus.Granularity == domain.GranularitySentence && settings.Corpus.SentencesPerChunk <= 0 {
		return fmt.Errorf("%w: corpus.sentences must be positive", domain.ErrInvalidInput)
	}

	needsEmbedding := settings.Retrieval.Strategy.RequiresEmbedding() ||
		settings.Routing.Classifier == domain.ClassifierEmbedding
	if needsEmbedding && !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not configured", domain.ErrInvalidInput, settings.Embedding.Provider)
	}

	if settings.Routing.Classifier == domain.ClassifierLLM && !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: the llm classifier requires an LLM provider", domain.ErrInvalidInput)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if d := s.configStore.GetDuration(key); d > 0 {
		return d
	}
	return defaultVal
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getStrategy(defaultVal domain.Strategy) domain.Strategy {
	strategy := domain.Strategy(s.configStore.GetString(keyRetrievalStrategy))
	if !strategy.IsValid() {
		return defaultVal
	}
	return strategy
}

func (s *SettingsService) getGranularity(defaultVal domain.Granularity) domain.Granularity {
	g := domain.Granularity(s.configStore.GetString(keyCorpusGrain))
	if !g.IsValid() {
		return defaultVal
	}
	return g
}

func (s *SettingsService) getClassifier(defaultVal domain.ClassifierKind) domain.ClassifierKind {
	kind := domain.ClassifierKind(s.configStore.GetString(keyRoutingClassifier))
	if !kind.IsValid() {
		return defaultVal
	}
	return kind
}

// getCategories reads routing.categories.<name>.{description,keywords,examples}.
// Configured categories replace the defaults entirely; fields a configured
// category leaves out are taken from the default profile of the same name.
func (s *SettingsService) getCategories(defaults []domain.CategoryProfile) []domain.CategoryProfile {
	names := make(map[string]bool)
	for _, key := range s.configStore.Keys(prefixCategories) {
		rest := strings.TrimPrefix(key, prefixCategories+".")
		if name, _, ok := strings.Cut(rest, "."); ok && name != "" {
			names[name] = true
		}
	}
	if len(names) == 0 {
		return defaults
	}

	byName := make(map[domain.Category]domain.CategoryProfile, len(defaults))
	for _, p := range defaults {
		byName[p.Category] = p
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	profiles := make([]domain.CategoryProfile, 0, len(sorted))
	for _, name := range sorted {
		prefix := prefixCategories + "." + name + "."
		p := byName[domain.Category(name)]
		p.Category = domain.Category(name)
		if desc := s.configStore.GetString(prefix + "description"); desc != "" {
			p.Description = desc
		}
		if kw := s.configStore.GetStringSlice(prefix + "keywords"); kw != nil {
			p.Keywords = kw
		}
		if ex := s.configStore.GetStringSlice(prefix + "examples"); ex != nil {
			p.Examples = ex
		}
		profiles = append(profiles, p)
	}
	return profiles
}

func (s *SettingsService) getEntities() map[string]string {
	keys := s.configStore.Keys(prefixEntities)
	if len(keys) == 0 {
		return nil
	}
	entities := make(map[string]string, len(keys))
	for _, key := range keys {
		if placeholder := s.configStore.GetString(key); placeholder != "" {
			entities[strings.TrimPrefix(key, prefixEntities+".")] = placeholder
		}
	}
	return entities
}

func (s *SettingsService) envKey(provider domain.AIProvider) string {
	name, ok := apiKeyEnv[provider]
	if !ok || s.getenv == nil {
		return ""
	}
	return s.getenv(name)
}
