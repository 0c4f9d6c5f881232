package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies a backend for embeddings or LLM calls.
type AIProvider string

// Available providers.
const (
	// AIProviderHashing is the built-in deterministic feature-hashing model.
	// It runs in-process and needs no network.
	AIProviderHashing AIProvider = "hashing"

	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API (or a compatible endpoint).
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic API. LLM only, no embeddings.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderHashing, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs without a remote API.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderHashing || p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderHashing:
		return "Hashing (built-in, deterministic)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud, LLM only)"
	default:
		return unknownDescription
	}
}

// ClassifierKind selects the query router backend.
type ClassifierKind string

// Available classifiers.
const (
	// ClassifierKeyword scores categories by configured keyword matches.
	ClassifierKeyword ClassifierKind = "keyword"

	// ClassifierEmbedding compares the query embedding with per-category prototypes.
	ClassifierEmbedding ClassifierKind = "embedding"

	// ClassifierLLM asks a remote LLM for per-category confidences.
	ClassifierLLM ClassifierKind = "llm"
)

// IsValid returns true if the classifier kind is recognised.
func (k ClassifierKind) IsValid() bool {
	switch k {
	case ClassifierKeyword, ClassifierEmbedding, ClassifierLLM:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k ClassifierKind) String() string {
	return string(k)
}

// Granularity selects the unit that is indexed.
type Granularity string

// Available granularities.
const (
	// GranularitySection indexes whole sections.
	GranularitySection Granularity = "section"

	// GranularitySentence indexes sentence windows cut from each section.
	GranularitySentence Granularity = "sentence"
)

// IsValid returns true if the granularity is recognised.
func (g Granularity) IsValid() bool {
	return g == GranularitySection || g == GranularitySentence
}

// CorpusSettings locates the corpus and its persisted snapshot.
type CorpusSettings struct {
	// Path is the corpus file (YAML or JSON).
	Path string

	// DataDir holds the SQLite database. Empty uses ~/.lorekeeper/data.
	DataDir string

	// Watch rebuilds the snapshot when the corpus file changes.
	Watch bool

	// Granularity selects section or sentence-window indexing.
	Granularity Granularity

	// SentencesPerChunk is the sentence window size.
	SentencesPerChunk int

	// SentenceOverlap is the number of sentences shared by neighbouring windows.
	SentenceOverlap int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Provider   AIProvider
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int

	// Timeout bounds a single query embedding call.
	Timeout time.Duration

	// CacheSize is the number of query embeddings kept in the LRU cache.
	// Zero disables the cache.
	CacheSize int

	// RequestsPerSecond throttles remote calls. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LexicalSettings holds BM25 parameters.
type LexicalSettings struct {
	// K1 controls term-frequency saturation.
	K1 float64

	// B controls document-length normalisation (0 = none, 1 = full).
	B float64

	// TitleWeight counts title terms this many times.
	TitleWeight int
}

// RetrievalSettings holds retriever defaults.
type RetrievalSettings struct {
	// Strategy is the default strategy. Dense unless configured otherwise.
	Strategy Strategy

	// K is the default number of hits.
	K int

	// RRFK is the reciprocal rank fusion constant.
	RRFK int

	// ContextTurns is how many prior user turns are appended to the query text.
	ContextTurns int
}

// CategoryProfile describes a corpus category to the classifiers.
type CategoryProfile struct {
	Category    Category
	Description string
	Keywords    []string
	Examples    []string
}

// RoutingSettings holds query router configuration.
type RoutingSettings struct {
	// Classifier selects the backend.
	Classifier ClassifierKind

	// FallbackThreshold adds the full-corpus scope when the top confidence
	// is below it.
	FallbackThreshold float64

	// MinScopeConfidence is the minimum confidence for a secondary scope.
	MinScopeConfidence float64

	// MaxScopes caps the number of category scopes.
	MaxScopes int

	// Timeout bounds a classification call.
	Timeout time.Duration

	// Categories describes each routable category.
	Categories []CategoryProfile

	// Entities maps entity names to placeholders for query normalisation,
	// e.g. "Fireball" -> "{spell}".
	Entities map[string]string
}

// LLMSettings holds LLM provider configuration (used by the LLM classifier).
type LLMSettings struct {
	Provider          AIProvider
	Model             string
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	switch l.Provider {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
	default:
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// AppSettings holds all application settings.
type AppSettings struct {
	Corpus    CorpusSettings
	Embedding EmbeddingSettings
	Lexical   LexicalSettings
	Retrieval RetrievalSettings
	Routing   RoutingSettings
	LLM       LLMSettings
}

// DefaultAppSettings returns settings that work offline out of the box:
// the built-in hashing model, dense retrieval and the keyword router.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Corpus: CorpusSettings{
			Path:              "corpus.yaml",
			Granularity:       GranularitySection,
			SentencesPerChunk: 2,
		},
		Embedding: EmbeddingSettings{
			Provider:   AIProviderHashing,
			Model:      DefaultEmbeddingModels()[AIProviderHashing],
			Dimensions: 768,
			Timeout:    10 * time.Second,
			CacheSize:  1024,
		},
		Lexical: LexicalSettings{
			K1:          1.2,
			B:           0.75,
			TitleWeight: 2,
		},
		Retrieval: RetrievalSettings{
			Strategy:     StrategyDense,
			K:            5,
			RRFK:         DefaultRRFK,
			ContextTurns: 1,
		},
		Routing: RoutingSettings{
			Classifier:         ClassifierKeyword,
			FallbackThreshold:  0.5,
			MinScopeConfidence: 0.25,
			MaxScopes:          2,
			Timeout:            5 * time.Second,
			Categories:         DefaultCategoryProfiles(),
		},
		LLM: LLMSettings{
			Timeout: 30 * time.Second,
		},
	}
}

// DefaultCategoryProfiles describes the three collaborator-supplied categories.
func DefaultCategoryProfiles() []CategoryProfile {
	return []CategoryProfile{
		{
			Category:    CategoryCharacter,
			Description: "The player's character sheet: ability scores, modifiers, hit points, inventory, weapons, proficiencies, class features.",
			Keywords: []string{
				"my", "mine", "character", "stats", "strength", "dexterity", "constitution",
				"intelligence", "wisdom", "charisma", "modifier", "bonus", "inventory",
				"hp", "hit points", "level", "proficiency", "weapon", "armor", "ac",
			},
			Examples: []string{"what is my strength modifier", "how many hit points do I have"},
		},
		{
			Category:    CategoryRules,
			Description: "Rulebook sections: combat rules, spells, conditions, actions, equipment tables, class rules.",
			Keywords: []string{
				"rule", "rules", "spell", "spells", "attack", "damage", "action", "bonus action",
				"reaction", "condition", "saving throw", "check", "advantage", "disadvantage",
				"grapple", "cover", "concentration", "rest", "initiative",
			},
			Examples: []string{"how does grappling work", "what does fireball do"},
		},
		{
			Category:    CategorySession,
			Description: "Session notes: past events, NPCs met, quests, locations visited, loot found.",
			Keywords: []string{
				"session", "last time", "npc", "quest", "met", "visited", "happened",
				"notes", "town", "village", "innkeeper", "remember", "yesterday",
			},
			Examples: []string{"who did we meet last session", "what quest are we on"},
		},
	}
}

// AllStrategies returns all retrieval strategies.
func AllStrategies() []Strategy {
	return []Strategy{StrategyDense, StrategyLexical, StrategyHybrid}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{AIProviderHashing, AIProviderOllama, AIProviderOpenAI}
}

// AllLLMProviders returns providers that support completions.
func AllLLMProviders() []AIProvider {
	return []AIProvider{AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderHashing: "hashing-v1",
		AIProviderOllama:  "nomic-embed-text",
		AIProviderOpenAI:  "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-haiku-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
