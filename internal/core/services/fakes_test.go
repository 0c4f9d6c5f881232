package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

var testTime = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

// fakeEmbedder returns preset vectors keyed by text, falling back to vector.
type fakeEmbedder struct {
	mu       sync.Mutex
	vector   []float32
	byText   map[string][]float32
	embedErr error
	model    string
	dims     int
	calls    int
	batched  int
}

func (f *fakeEmbedder) lookup(text string) []float32 {
	if v, ok := f.byText[text]; ok {
		return v
	}
	return f.vector
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.lookup(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batched += len(texts)
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.lookup(t)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int {
	if f.dims > 0 {
		return f.dims
	}
	return len(f.vector)
}

func (f *fakeEmbedder) ModelName() string {
	if f.model == "" {
		return "fake-embed"
	}
	return f.model
}

func (f *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (f *fakeEmbedder) Close() error { return nil }

// fakeRouter returns a fixed decision.
type fakeRouter struct {
	decision domain.RoutingDecision
	calls    int
}

func (r *fakeRouter) Route(_ context.Context, q domain.Query) domain.RoutingDecision {
	r.calls++
	d := r.decision
	d.QueryID = q.ID
	return d
}

func (r *fakeRouter) Categories() []domain.Category {
	return []domain.Category{domain.CategoryCharacter, domain.CategoryRules, domain.CategorySession}
}

// recordingSink collects emitted events.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *recordingSink) Emit(_ context.Context, e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = string(e.Stage) + ":" + string(e.Status)
	}
	return out
}

// countingMetrics counts recorder calls.
type countingMetrics struct {
	mu              sync.Mutex
	retrievals      int
	lastHits        int
	routings        int
	embeddingErrors map[string]int
	corpusSize      int
}

func (m *countingMetrics) ObserveRetrieval(_ domain.Strategy, _ time.Duration, hits int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrievals++
	m.lastHits = hits
}

func (m *countingMetrics) ObserveRouting(_ *domain.RoutingDecision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routings++
}

func (m *countingMetrics) IncEmbeddingError(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.embeddingErrors == nil {
		m.embeddingErrors = map[string]int{}
	}
	m.embeddingErrors[model]++
}

func (m *countingMetrics) SetCorpusSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corpusSize = n
}

// fakeSource serves a fixed section list.
type fakeSource struct {
	sections []domain.Section
	err      error
}

func (s *fakeSource) Load(_ context.Context) ([]domain.Section, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Section, len(s.sections))
	copy(out, s.sections)
	return out, nil
}

func (s *fakeSource) Name() string { return "fake" }

// fakeSectionStore keeps sections in memory.
type fakeSectionStore struct {
	saved   []domain.Section
	saveErr error
	loadErr error
}

func (s *fakeSectionStore) SaveSections(_ context.Context, sections []domain.Section) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append([]domain.Section(nil), sections...)
	return nil
}

func (s *fakeSectionStore) LoadSections(_ context.Context) ([]domain.Section, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]domain.Section(nil), s.saved...), nil
}

func (s *fakeSectionStore) GetSection(_ context.Context, id string) (*domain.Section, error) {
	for i := range s.saved {
		if s.saved[i].ID == id {
			sec := s.saved[i]
			return &sec, nil
		}
	}
	return nil, domain.ErrNotFound
}

// fakeClassifier returns preset scores.
type fakeClassifier struct {
	scores []domain.ScopeScore
	err    error
	delay  time.Duration
	seen   []string
}

func (c *fakeClassifier) Classify(ctx context.Context, q domain.Query, _ []domain.Category) ([]domain.ScopeScore, error) {
	c.seen = append(c.seen, q.ClassificationText())
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, domain.NewClassificationUnavailable(c.Name(), ctx.Err())
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return append([]domain.ScopeScore(nil), c.scores...), nil
}

func (c *fakeClassifier) Name() string { return "fake" }

// fakeRoutingLog keeps records in memory.
type fakeRoutingLog struct {
	mu      sync.Mutex
	records []domain.RoutingRecord
	err     error
}

func (l *fakeRoutingLog) Record(_ context.Context, r *domain.RoutingRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.records = append(l.records, *r)
	return nil
}

func (l *fakeRoutingLog) List(_ context.Context, limit int) ([]domain.RoutingRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.RoutingRecord, 0, len(l.records))
	for i := len(l.records) - 1; i >= 0; i-- {
		out = append(out, l.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *fakeRoutingLog) Annotate(_ context.Context, id string, correct []domain.Category) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.records {
		if l.records[i].ID == id {
			l.records[i].CorrectScopes = correct
			return nil
		}
	}
	return domain.ErrNotFound
}

var (
	_ driven.EmbeddingService = (*fakeEmbedder)(nil)
	_ driven.EventSink        = (*recordingSink)(nil)
	_ driven.MetricsRecorder  = (*countingMetrics)(nil)
	_ driven.CorpusSource     = (*fakeSource)(nil)
	_ driven.SectionStore     = (*fakeSectionStore)(nil)
	_ driven.Classifier       = (*fakeClassifier)(nil)
	_ driven.RoutingLogStore  = (*fakeRoutingLog)(nil)
)
