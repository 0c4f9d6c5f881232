package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Ensure CorpusService implements the interface.
var _ driving.CorpusService = (*CorpusService)(nil)

// defaultEmbedBatchSize is the number of sections embedded per provider call.
const defaultEmbedBatchSize = 64

// Snapshot is an immutable, fully built corpus. Readers share it without
// locking; a rebuild publishes a new snapshot instead of mutating this one.
type Snapshot struct {
	version    uint64
	sections   []domain.Section
	byID       map[string]int
	byCategory map[domain.Category][]int
	lexical    driven.LexicalIndex
	model      string
	dimensions int
	embedded   int
	builtAt    time.Time
}

// Version returns the snapshot version.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Len returns the number of sections.
func (s *Snapshot) Len() int {
	return len(s.sections)
}

// Sections returns all sections ordered by ID. The slice must not be modified.
func (s *Snapshot) Sections() []domain.Section {
	return s.sections
}

// Get returns a section by ID.
func (s *Snapshot) Get(id string) (*domain.Section, bool) {
	i, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return &s.sections[i], true
}

// Filter returns the sections in the given categories, ordered by ID.
// With no categories it returns every section.
func (s *Snapshot) Filter(categories ...domain.Category) []domain.Section {
	if len(categories) == 0 {
		out := make([]domain.Section, len(s.sections))
		copy(out, s.sections)
		return out
	}

	var idx []int
	seen := make(map[domain.Category]bool, len(categories))
	for _, c := range categories {
		if seen[c] {
			continue
		}
		seen[c] = true
		idx = append(idx, s.byCategory[c]...)
	}
	sort.Ints(idx)

	out := make([]domain.Section, len(idx))
	for i, j := range idx {
		out[i] = s.sections[j]
	}
	return out
}

// Categories returns the categories present, sorted.
func (s *Snapshot) Categories() []domain.Category {
	out := make([]domain.Category, 0, len(s.byCategory))
	for c := range s.byCategory {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lexical returns the BM25 index over the snapshot.
func (s *Snapshot) Lexical() driven.LexicalIndex {
	return s.lexical
}

// Model returns the embedding model shared by all sections.
func (s *Snapshot) Model() string {
	return s.model
}

// Dimensions returns the shared embedding dimensionality.
func (s *Snapshot) Dimensions() int {
	return s.dimensions
}

// Stats describes the snapshot.
func (s *Snapshot) Stats() domain.CorpusStats {
	counts := make(map[domain.Category]int, len(s.byCategory))
	for c, idx := range s.byCategory {
		counts[c] = len(idx)
	}
	return domain.CorpusStats{
		Version:        s.version,
		Sections:       len(s.sections),
		ByCategory:     counts,
		EmbeddingModel: s.model,
		Dimensions:     s.dimensions,
		Embedded:       s.embedded,
		BuiltAt:        s.builtAt,
	}
}

// CorpusService owns the live corpus snapshot.
// Build is single-writer; reads never block.
type CorpusService struct {
	embedder  driven.EmbeddingService
	lexical   driven.LexicalIndexBuilder
	source    driven.CorpusSource
	pipeline  driven.PostProcessorPipeline
	store     driven.SectionStore
	metrics   driven.MetricsRecorder
	batchSize int
	now       func() time.Time

	buildMu sync.Mutex
	version uint64
	current atomic.Pointer[Snapshot]
}

// NewCorpusService creates a corpus service.
func NewCorpusService(embedder driven.EmbeddingService, lexical driven.LexicalIndexBuilder) *CorpusService {
	return &CorpusService{
		embedder:  embedder,
		lexical:   lexical,
		batchSize: defaultEmbedBatchSize,
		now:       time.Now,
	}
}

// SetSource sets the corpus source used by Rebuild.
func (s *CorpusService) SetSource(source driven.CorpusSource) {
	s.source = source
}

// SetPipeline sets the processors applied to loaded sections, e.g. the
// sentence chunker.
func (s *CorpusService) SetPipeline(p driven.PostProcessorPipeline) {
	s.pipeline = p
}

// SetSectionStore enables snapshot persistence and embedding reuse.
func (s *CorpusService) SetSectionStore(store driven.SectionStore) {
	s.store = store
}

// SetMetrics sets the metrics recorder.
func (s *CorpusService) SetMetrics(m driven.MetricsRecorder) {
	s.metrics = m
}

// Snapshot returns the live snapshot, or nil before the first build.
func (s *CorpusService) Snapshot() *Snapshot {
	return s.current.Load()
}

// Build embeds, validates and publishes sections as the new snapshot.
// On any failure the previous snapshot stays live and nothing is dropped silently.
func (s *CorpusService) Build(ctx context.Context, sections []domain.Section) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	logger.Section("Corpus Build")
	start := s.now()

	snap, err := s.prepare(ctx, sections)
	if err != nil {
		logger.Warn("Corpus build rejected: %v", err)
		return fmt.Errorf("build corpus: %w", err)
	}

	s.version++
	snap.version = s.version
	snap.builtAt = s.now()
	s.current.Store(snap)

	logger.Info("Corpus snapshot v%d: %d sections (%d embedded, model %s, %d dims) in %s",
		snap.version, snap.Len(), snap.embedded, snap.model, snap.dimensions, time.Since(start).Round(time.Millisecond))

	if s.metrics != nil {
		s.metrics.SetCorpusSize(snap.Len())
	}

	if s.store != nil {
		if err := s.store.SaveSections(ctx, snap.sections); err != nil {
			// The snapshot is live; persistence only saves re-embedding work.
			logger.Warn("Failed to persist corpus snapshot: %v", err)
		}
	}
	return nil
}

// Rebuild loads sections from the source and builds them, reusing stored
// embeddings for unchanged sections.
func (s *CorpusService) Rebuild(ctx context.Context) error {
	if s.source == nil {
		return fmt.Errorf("%w: no corpus source configured", domain.ErrInvalidInput)
	}

	fresh, err := s.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load corpus from %s: %w", s.source.Name(), err)
	}
	logger.Debug("Loaded %d sections from %s", len(fresh), s.source.Name())

	if s.pipeline != nil {
		fresh, err = s.pipeline.Process(ctx, fresh)
		if err != nil {
			return fmt.Errorf("process sections: %w", err)
		}
		logger.Debug("Pipeline produced %d sections", len(fresh))
	}

	if s.store != nil {
		stored, err := s.store.LoadSections(ctx)
		if err != nil {
			logger.Warn("Failed to load stored snapshot, re-embedding everything: %v", err)
		} else {
			reused := CarryEmbeddings(fresh, stored, s.embedder.ModelName(), s.embedder.Dimensions())
			logger.Debug("Reusing %d stored embeddings", reused)
		}
	}

	return s.Build(ctx, fresh)
}

// Get returns a section from the live snapshot.
func (s *CorpusService) Get(id string) (*domain.Section, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("section %q: %w (%w)", id, domain.ErrNotFound, domain.ErrNoSnapshot)
	}
	sec, ok := snap.Get(id)
	if !ok {
		return nil, fmt.Errorf("section %q: %w", id, domain.ErrNotFound)
	}
	cp := *sec
	return &cp, nil
}

// Filter returns sections of the live snapshot in the given categories.
func (s *CorpusService) Filter(categories ...domain.Category) []domain.Section {
	snap := s.current.Load()
	if snap == nil {
		return []domain.Section{}
	}
	return snap.Filter(categories...)
}

// Stats describes the live snapshot; zero before the first build.
func (s *CorpusService) Stats() domain.CorpusStats {
	snap := s.current.Load()
	if snap == nil {
		return domain.CorpusStats{ByCategory: map[domain.Category]int{}}
	}
	return snap.Stats()
}

// prepare builds a snapshot without publishing it.
func (s *CorpusService) prepare(ctx context.Context, in []domain.Section) (*Snapshot, error) {
	sections := make([]domain.Section, len(in))
	copy(sections, in)

	seen := make(map[string]bool, len(sections))
	for i := range sections {
		sec := &sections[i]
		if sec.ID == "" {
			return nil, &domain.CorpusIntegrityError{Reason: fmt.Sprintf("section at position %d has no id", i)}
		}
		if seen[sec.ID] {
			return nil, &domain.CorpusIntegrityError{SectionID: sec.ID, Reason: "duplicate id"}
		}
		seen[sec.ID] = true
		if sec.Category == "" {
			return nil, &domain.CorpusIntegrityError{SectionID: sec.ID, Reason: "missing category"}
		}
	}

	embedded, err := s.embedMissing(ctx, sections)
	if err != nil {
		return nil, err
	}

	model := s.embedder.ModelName()
	dims := s.embedder.Dimensions()
	for i := range sections {
		sec := &sections[i]
		if dims <= 0 {
			dims = len(sec.Embedding)
		}
		if len(sec.Embedding) != dims {
			return nil, &domain.CorpusIntegrityError{
				SectionID: sec.ID,
				Reason:    fmt.Sprintf("embedding has %d dimensions, snapshot uses %d", len(sec.Embedding), dims),
			}
		}
		if sec.EmbeddingModel != model {
			return nil, &domain.CorpusIntegrityError{
				SectionID: sec.ID,
				Reason:    fmt.Sprintf("embedding from model %q, snapshot uses %q", sec.EmbeddingModel, model),
			}
		}
	}

	sort.Slice(sections, func(i, j int) bool { return sections[i].ID < sections[j].ID })

	snap := &Snapshot{
		sections:   sections,
		byID:       make(map[string]int, len(sections)),
		byCategory: make(map[domain.Category][]int),
		model:      model,
		dimensions: dims,
		embedded:   embedded,
	}
	for i := range sections {
		snap.byID[sections[i].ID] = i
		snap.byCategory[sections[i].Category] = append(snap.byCategory[sections[i].Category], i)
	}
	snap.lexical = s.lexical.Build(sections)
	return snap, nil
}

// embedMissing computes embeddings for sections that have none, or whose
// embedding came from another model. Sections supplied with an embedding but
// no model name are taken to be in the active model's space and are validated
// like any other.
func (s *CorpusService) embedMissing(ctx context.Context, sections []domain.Section) (int, error) {
	model := s.embedder.ModelName()

	var pending []int
	for i := range sections {
		sec := &sections[i]
		switch {
		case !sec.HasEmbedding():
			pending = append(pending, i)
		case sec.EmbeddingModel == "":
			sec.EmbeddingModel = model
		case sec.EmbeddingModel != model:
			logger.Debug("Section %s embedded with %s, re-embedding with %s", sec.ID, sec.EmbeddingModel, model)
			pending = append(pending, i)
		}
	}

	for start := 0; start < len(pending); start += s.batchSize {
		end := min(start+s.batchSize, len(pending))
		texts := make([]string, 0, end-start)
		for _, i := range pending[start:end] {
			texts = append(texts, sections[i].EmbeddingText())
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if s.metrics != nil {
				s.metrics.IncEmbeddingError(model)
			}
			return 0, fmt.Errorf("embed sections: %w", err)
		}
		if len(vectors) != len(texts) {
			return 0, &domain.CorpusIntegrityError{
				Reason: fmt.Sprintf("embedding provider returned %d vectors for %d sections", len(vectors), len(texts)),
			}
		}
		for j, i := range pending[start:end] {
			sections[i].Embedding = vectors[j]
			sections[i].EmbeddingModel = model
		}
		logger.Debug("Embedded sections %d-%d of %d", start+1, end, len(pending))
	}
	return len(pending), nil
}

// CarryEmbeddings copies stored embeddings onto fresh sections whose content
// hash, model and vector length are unchanged. A dims of zero accepts any
// length. It returns the number of sections reused.
func CarryEmbeddings(fresh, stored []domain.Section, model string, dims int) int {
	type entry struct {
		hash      string
		embedding []float32
	}
	byID := make(map[string]entry, len(stored))
	for i := range stored {
		st := &stored[i]
		if st.EmbeddingModel != model || !st.HasEmbedding() {
			continue
		}
		if dims > 0 && len(st.Embedding) != dims {
			continue
		}
		byID[st.ID] = entry{hash: st.ContentHash(), embedding: st.Embedding}
	}

	reused := 0
	for i := range fresh {
		f := &fresh[i]
		if f.HasEmbedding() {
			continue
		}
		e, ok := byID[f.ID]
		if !ok || e.hash != f.ContentHash() {
			continue
		}
		f.Embedding = e.embedding
		f.EmbeddingModel = model
		reused++
	}
	return reused
}
