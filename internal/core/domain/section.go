package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Category groups sections by the kind of knowledge they hold.
// The set is open: corpora may introduce their own categories.
type Category string

// Well-known categories supplied by the character-sheet collaborators.
const (
	// CategoryRules holds rulebook sections (mechanics, spells, conditions).
	CategoryRules Category = "rules"

	// CategoryCharacter holds character-sheet fields (stats, inventory, features).
	CategoryCharacter Category = "character"

	// CategorySession holds session-note fields (events, NPCs, quests).
	CategorySession Category = "session"
)

// String returns the string representation.
func (c Category) String() string {
	return string(c)
}

// ParseCategories converts names to categories, skipping blanks.
func ParseCategories(names []string) []Category {
	out := make([]Category, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			out = append(out, Category(n))
		}
	}
	return out
}

func sortCategories(cs []Category) {
	sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })
}

// Section is one indexed unit of corpus text.
// Sections are immutable once a corpus snapshot has been built.
type Section struct {
	// ID is unique within a corpus snapshot.
	ID string `json:"id" yaml:"id"`

	// Title is the optional heading; it is a strong relevance signal.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Text is the section content.
	Text string `json:"text" yaml:"text"`

	// Category is the knowledge grouping used for routing.
	Category Category `json:"category" yaml:"category"`

	// SourcePath records provenance (document, page, field path).
	SourcePath string `json:"source_path,omitempty" yaml:"source_path,omitempty"`

	// ParentID links a sub-section chunk to the section it was cut from.
	// Empty for whole sections.
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`

	// Hierarchy is the heading path, outermost first.
	Hierarchy []string `json:"hierarchy,omitempty" yaml:"hierarchy,omitempty"`

	// Metadata holds collaborator-specific attributes.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Embedding is the dense vector computed by EmbeddingModel.
	Embedding []float32 `json:"-" yaml:"-"`

	// EmbeddingModel names the provider model that produced Embedding.
	EmbeddingModel string `json:"embedding_model,omitempty" yaml:"-"`
}

// EmbeddingText returns the text fed to the embedding provider.
// The title is prepended so it contributes to the vector.
func (s *Section) EmbeddingText() string {
	if s.Title == "" {
		return s.Text
	}
	return s.Title + "\n" + s.Text
}

// ContentHash fingerprints the fields that influence the embedding.
// A persisted embedding can be reused only while the hash is unchanged.
func (s *Section) ContentHash() string {
	h := sha256.New()
	h.Write([]byte(s.Title))
	h.Write([]byte{0})
	h.Write([]byte(s.Text))
	return hex.EncodeToString(h.Sum(nil))
}

// RootID returns the ParentID when set, otherwise the section's own ID.
func (s *Section) RootID() string {
	if s.ParentID != "" {
		return s.ParentID
	}
	return s.ID
}

// HasEmbedding reports whether an embedding has been computed.
func (s *Section) HasEmbedding() bool {
	return len(s.Embedding) > 0
}

// Breadcrumb renders the hierarchy for display, e.g. "Spells > Evocation".
func (s *Section) Breadcrumb() string {
	return strings.Join(s.Hierarchy, " > ")
}
