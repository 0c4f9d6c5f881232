package domain

import "time"

// CorpusStats describes a built corpus snapshot.
type CorpusStats struct {
	// Version increases by one for every published snapshot.
	Version uint64 `json:"version"`

	// Sections is the total number of sections.
	Sections int `json:"sections"`

	// ByCategory counts sections per category.
	ByCategory map[Category]int `json:"by_category"`

	// EmbeddingModel is the model shared by all embeddings.
	EmbeddingModel string `json:"embedding_model"`

	// Dimensions is the shared embedding dimensionality.
	Dimensions int `json:"dimensions"`

	// Embedded counts sections whose embedding was computed during the build
	// (the rest were carried over from the stored snapshot).
	Embedded int `json:"embedded"`

	// BuiltAt is when the snapshot was published.
	BuiltAt time.Time `json:"built_at"`
}

// Categories returns the categories present in the snapshot, sorted.
func (s CorpusStats) Categories() []Category {
	out := make([]Category, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		out = append(out, c)
	}
	sortCategories(out)
	return out
}
