// Package chunker splits corpus sections into sentence-window chunks.
package chunker

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/textproc"
)

// Name is the registry name of the chunker.
const Name = "sentence_chunker"

// DefaultSentences is the default number of sentences per chunk.
const DefaultSentences = 2

// DefaultOverlap is the default number of sentences shared by neighbours.
const DefaultOverlap = 0

// Processor cuts each section into windows of consecutive sentences.
//
// Chunk IDs are "<section id>#s<n>" with n starting at 1. Chunks keep the
// section's category, source path, hierarchy and metadata, point back to it
// through ParentID and drop the title. Embeddings are not copied.
type Processor struct {
	sentences int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithSentences sets the window size in sentences.
func WithSentences(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.sentences = n
		}
	}
}

// WithOverlap sets how many sentences consecutive windows share.
func WithOverlap(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.overlap = n
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		sentences: DefaultSentences,
		overlap:   DefaultOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// The window must advance.
	if p.overlap >= p.sentences {
		p.overlap = p.sentences - 1
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

// Sentences returns the window size.
func (p *Processor) Sentences() int {
	return p.sentences
}

// Overlap returns the number of shared sentences.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Process replaces every section by its chunks.
// A section with no sentences yields no chunks.
func (p *Processor) Process(ctx context.Context, sections []domain.Section) ([]domain.Section, error) {
	out := make([]domain.Section, 0, len(sections))
	for i := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, p.chunk(&sections[i])...)
	}
	return out, nil
}

func (p *Processor) chunk(sec *domain.Section) []domain.Section {
	sentences := textproc.SplitSentences(sec.Text)
	if len(sentences) == 0 {
		return nil
	}

	step := p.sentences - p.overlap
	var chunks []domain.Section
	for start, n := 0, 1; ; start, n = start+step, n+1 {
		end := start + p.sentences
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, domain.Section{
			ID:         fmt.Sprintf("%s#s%d", sec.ID, n),
			Text:       strings.Join(sentences[start:end], " "),
			Category:   sec.Category,
			SourcePath: sec.SourcePath,
			ParentID:   sec.RootID(),
			Hierarchy:  slices.Clone(sec.Hierarchy),
			Metadata:   maps.Clone(sec.Metadata),
		})
		if end == len(sentences) {
			break
		}
	}
	return chunks
}
