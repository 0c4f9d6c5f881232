// Package bm25 provides an in-memory Okapi BM25 lexical index.
package bm25

import (
	"math"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/textproc"
)

// Ensure implementations satisfy the interfaces.
var (
	_ driven.LexicalIndex        = (*Index)(nil)
	_ driven.LexicalIndexBuilder = (*Builder)(nil)
)

// Default parameters.
const (
	DefaultK1          = 1.2
	DefaultB           = 0.75
	DefaultTitleWeight = 2
)

// Config holds BM25 parameters.
type Config struct {
	// K1 controls term-frequency saturation.
	K1 float64

	// B controls document-length normalisation (0 = none, 1 = full).
	B float64

	// TitleWeight counts title terms this many times. Zero ignores titles.
	TitleWeight int
}

// DefaultConfig returns the standard Okapi parameters with titles counted twice.
func DefaultConfig() Config {
	return Config{K1: DefaultK1, B: DefaultB, TitleWeight: DefaultTitleWeight}
}

// ConfigFromSettings converts lexical settings, filling unset values with defaults.
func ConfigFromSettings(s domain.LexicalSettings) Config {
	cfg := Config{K1: s.K1, B: s.B, TitleWeight: s.TitleWeight}
	if cfg.K1 <= 0 {
		cfg.K1 = DefaultK1
	}
	if cfg.B < 0 || cfg.B > 1 {
		cfg.B = DefaultB
	}
	if cfg.TitleWeight < 0 {
		cfg.TitleWeight = 0
	}
	return cfg
}

// Builder builds indexes with a fixed configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a builder.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Build indexes the given sections.
func (b *Builder) Build(sections []domain.Section) driven.LexicalIndex {
	return New(sections, b.cfg)
}

type posting struct {
	doc  int
	freq int
}

// Index is an immutable inverted index. Safe for concurrent readers.
type Index struct {
	cfg      Config
	ids      []string
	lengths  []int
	avgLen   float64
	postings map[string][]posting
}

// New builds an index over sections. Document text is the title repeated
// TitleWeight times followed by the body.
func New(sections []domain.Section, cfg Config) *Index {
	idx := &Index{
		cfg:      cfg,
		ids:      make([]string, len(sections)),
		lengths:  make([]int, len(sections)),
		postings: make(map[string][]posting),
	}

	total := 0
	for i := range sections {
		s := &sections[i]
		idx.ids[i] = s.ID

		var terms []string
		title := textproc.Tokenize(s.Title)
		for w := 0; w < cfg.TitleWeight; w++ {
			terms = append(terms, title...)
		}
		terms = append(terms, textproc.Tokenize(s.Text)...)

		idx.lengths[i] = len(terms)
		total += len(terms)

		freqs := make(map[string]int, len(terms))
		order := make([]string, 0, len(terms))
		for _, t := range terms {
			if freqs[t] == 0 {
				order = append(order, t)
			}
			freqs[t]++
		}
		for _, t := range order {
			idx.postings[t] = append(idx.postings[t], posting{doc: i, freq: freqs[t]})
		}
	}

	if len(sections) > 0 {
		idx.avgLen = float64(total) / float64(len(sections))
	}
	return idx
}

// Score returns the BM25 score of every section matching at least one term.
// Repeated query terms count once.
func (idx *Index) Score(terms []string) map[string]float64 {
	scores := make(map[string]float64)
	if len(idx.ids) == 0 || idx.avgLen == 0 {
		return scores
	}

	n := float64(len(idx.ids))
	k1, b := idx.cfg.K1, idx.cfg.B
	for _, term := range textproc.Unique(terms) {
		plist := idx.postings[term]
		if len(plist) == 0 {
			continue
		}
		df := float64(len(plist))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for _, p := range plist {
			f := float64(p.freq)
			norm := 1 - b + b*float64(idx.lengths[p.doc])/idx.avgLen
			scores[idx.ids[p.doc]] += idf * (f * (k1 + 1)) / (f + k1*norm)
		}
	}
	return scores
}

// Tokenize applies the index analyser to query text.
func (idx *Index) Tokenize(text string) []string {
	return textproc.Tokenize(text)
}

// Len returns the number of indexed sections.
func (idx *Index) Len() int {
	return len(idx.ids)
}
