package driven

import "github.com/custodia-labs/lorekeeper/internal/core/domain"

// LexicalIndex scores sections by keyword statistics (BM25).
// An index is built once per corpus snapshot and is read-only afterwards,
// so it is safe for concurrent use.
type LexicalIndex interface {
	// Score returns the score of every section that matches at least one term.
	// Sections that match nothing are absent from the map.
	Score(terms []string) map[string]float64

	// Tokenize splits text into index terms using the index's analyser.
	Tokenize(text string) []string

	// Len returns the number of indexed sections.
	Len() int
}

// LexicalIndexBuilder builds a LexicalIndex over a set of sections.
type LexicalIndexBuilder interface {
	Build(sections []domain.Section) LexicalIndex
}
