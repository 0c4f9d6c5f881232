package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptRouteClassify asks an LLM for per-category confidences.
	// The template expects two %s placeholders: the category list and the query.
	PromptRouteClassify = "route_classify"

	// PromptRouteSystem is the system prompt for the LLM classifier.
	// This prompt has no format placeholders.
	PromptRouteSystem = "route_system"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service uses hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
