package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/normalisers/markdown"
)

// Verify interface compliance.
var (
	_ driven.CorpusSource  = (*Source)(nil)
	_ driven.CorpusWatcher = (*Source)(nil)
)

// DefaultDebounce coalesces the burst of events an editor emits on save.
const DefaultDebounce = 250 * time.Millisecond

// corpusFile is the on-disk layout.
type corpusFile struct {
	Sections []domain.Section `yaml:"sections"`
}

// Source reads sections from a single corpus file: YAML, JSON or Markdown
// with front matter.
type Source struct {
	path     string
	debounce time.Duration
}

// Option configures a Source.
type Option func(*Source)

// WithDebounce sets the quiet period before a change is reported.
func WithDebounce(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// NewSource creates a source for the corpus file at path.
func NewSource(path string, opts ...Option) *Source {
	s := &Source{path: path, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the corpus file path.
func (s *Source) Name() string {
	return s.path
}

// Load reads and parses the corpus file.
func (s *Source) Load(ctx context.Context) ([]domain.Section, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	if isMarkdown(s.path) {
		return markdown.Parse(data, filepath.Base(s.path))
	}
	return ParseSections(data)
}

// ParseSections decodes a corpus document. Unknown fields are rejected so
// that typos in collaborator files surface instead of silently dropping data.
func ParseSections(data []byte) ([]domain.Section, error) {
	var doc corpusFile
	if err := decodeStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse corpus: %v", domain.ErrInvalidInput, err)
	}

	for i := range doc.Sections {
		sec := &doc.Sections[i]
		sec.ID = strings.TrimSpace(sec.ID)
		sec.Category = domain.Category(strings.ToLower(strings.TrimSpace(string(sec.Category))))
		sec.Text = strings.TrimSpace(sec.Text)
	}
	if doc.Sections == nil {
		return []domain.Section{}, nil
	}
	return doc.Sections, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	default:
		return false
	}
}

// absPath resolves the watched path once so events can be compared by name.
func (s *Source) absPath() (string, error) {
	p, err := filepath.Abs(s.path)
	if err != nil {
		return "", fmt.Errorf("resolve corpus path: %w", err)
	}
	return p, nil
}
