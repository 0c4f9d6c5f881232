package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

const testModel = "fake-embed"

// embedded returns a section carrying a precomputed embedding.
func embedded(id string, cat domain.Category, text string, vec ...float32) domain.Section {
	return domain.Section{ID: id, Category: cat, Text: text, Embedding: vec, EmbeddingModel: testModel}
}

func newTestRetrieval(t *testing.T, queryVec []float32, sections ...domain.Section) (*RetrievalService, *fakeEmbedder) {
	t.Helper()
	emb := &fakeEmbedder{vector: queryVec}
	corpus := newTestCorpus(emb)
	require.NoError(t, corpus.Build(context.Background(), sections))
	return NewRetrievalService(corpus, emb, nil, domain.RetrievalSettings{}), emb
}

func grappleCorpus() []domain.Section {
	return []domain.Section{
		embedded("a", domain.CategoryRules, "fireball burns everything", 1, 0),
		embedded("b", domain.CategoryRules, "grapple grapple", 0.8, 0.6),
		embedded("c", domain.CategoryRules, "grapple rules shove", 0, 1),
	}
}

func TestRetrievalService_Dense(t *testing.T) {
	svc, _ := newTestRetrieval(t, []float32{1, 0}, grappleCorpus()...)

	res, err := svc.Retrieve(context.Background(), domain.Query{RawText: "how do I grapple"}, domain.RetrieveOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.StrategyDense, res.Strategy)
	assert.NotEmpty(t, res.QueryID)
	assert.Nil(t, res.Routing)
	assert.Equal(t, []string{"a", "b", "c"}, res.SectionIDs())
	assert.InDelta(t, 1.0, res.Hits[0].Score, 1e-9)
	assert.InDelta(t, 0.8, res.Hits[1].Score, 1e-6)
	for i, h := range res.Hits {
		assert.Equal(t, i+1, h.Rank)
		assert.Equal(t, h.SectionID, h.Section.ID)
		assert.Nil(t, h.Section.Embedding)
	}
}

func TestRetrievalService_Deterministic(t *testing.T) {
	secs := []domain.Section{
		embedded("z", domain.CategoryRules, "same", 1, 0),
		embedded("m", domain.CategoryRules, "same", 1, 0),
		embedded("a", domain.CategoryRules, "same", 1, 0),
	}
	svc, _ := newTestRetrieval(t, []float32{1, 0}, secs...)

	first, err := svc.Retrieve(context.Background(), domain.Query{RawText: "same"}, domain.RetrieveOptions{})
	require.NoError(t, err)
	// Equal scores fall back to ID order.
	assert.Equal(t, []string{"a", "m", "z"}, first.SectionIDs())

	for range 5 {
		again, err := svc.Retrieve(context.Background(), domain.Query{RawText: "same"}, domain.RetrieveOptions{})
		require.NoError(t, err)
		assert.Equal(t, first.SectionIDs(), again.SectionIDs())
	}
}

func TestRetrievalService_Lexical(t *testing.T) {
	svc, emb := newTestRetrieval(t, []float32{1, 0}, grappleCorpus()...)

	res, err := svc.Retrieve(context.Background(), domain.Query{RawText: "grapple"},
		domain.RetrieveOptions{Strategy: domain.StrategyLexical})
	require.NoError(t, err)

	// Sections without a matching term are omitted.
	assert.Equal(t, []string{"b", "c"}, res.SectionIDs())
	assert.Greater(t, res.Hits[0].Score, res.Hits[1].Score)
	assert.Equal(t, 0, emb.calls, "lexical retrieval must not embed the query")

	none, err := svc.Retrieve(context.Background(), domain.Query{RawText: "dragon"},
		domain.RetrieveOptions{Strategy: domain.StrategyLexical})
	require.NoError(t, err)
	assert.True(t, none.IsEmpty())
	assert.NotNil(t, none.Hits)
}

func TestRetrievalService_HybridUsesReciprocalRankFusion(t *testing.T) {
	svc, _ := newTestRetrieval(t, []float32{1, 0}, grappleCorpus()...)

	res, err := svc.Retrieve(context.Background(), domain.Query{RawText: "grapple"},
		domain.RetrieveOptions{Strategy: domain.StrategyHybrid})
	require.NoError(t, err)

	// dense: a, b, c    lexical: b, c
	require.Equal(t, []string{"b", "c", "a"}, res.SectionIDs())
	assert.InDelta(t, 1.0/62+1.0/61, res.Hits[0].Score, 1e-12)
	assert.InDelta(t, 1.0/63+1.0/62, res.Hits[1].Score, 1e-12)
	assert.InDelta(t, 1.0/61, res.Hits[2].Score, 1e-12)
}

func TestRetrievalService_K(t *testing.T) {
	svc, _ := newTestRetrieval(t, []float32{1, 0}, grappleCorpus()...)

	res, err := svc.Retrieve(context.Background(), domain.Query{RawText: "x"}, domain.RetrieveOptions{K: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.SectionIDs())

	res, err = svc.Retrieve(context.Background(), domain.Query{RawText: "x"}, domain.RetrieveOptions{K: 50})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 3)
}

func TestRetrievalService_InvalidInput(t *testing.T) {
	svc, _ := newTestRetrieval(t, []float32{1, 0}, grappleCorpus()...)

	tests := []struct {
		name  string
		query domain.Query
		opts  domain.RetrieveOptions
	}{
		{"empty query", domain.Query{RawText: "   "}, domain.RetrieveOptions{}},
		{"negative k", domain.Query{RawText: "grapple"}, domain.RetrieveOptions{K: -1}},
		{"unknown strategy", domain.Query{RawText: "grapple"}, domain.RetrieveOptions{Strategy: "sparse"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Retrieve(context.Background(), tt.query, tt.opts)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
}

func TestRetrievalService_NoSnapshot(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	svc := NewRetrievalService(newTestCorpus(emb), emb, nil, domain.RetrievalSettings{})

	_, err := svc.Retrieve(context.Background(), domain.Query{RawText: "grapple"}, domain.RetrieveOptions{})
	assert.True(t, errors.Is(err, domain.ErrNoSnapshot))
}

func TestRetrievalService_EmbeddingFailure(t *testing.T) {
	svc, emb := newTestRetrieval(t, []float32{1, 0}, grappleCorpus()...)
	metrics := &countingMetrics{}
	sink := &recordingSink{}
	svc.SetMetrics(metrics)
	svc.SetEventSink(sink)
	emb.embedErr = errors.New("connection refused")

	for _, strategy := range []domain.Strategy{domain.StrategyDense, domain.StrategyHybrid} {
		_, err := svc.Retrieve(context.Background(), domain.Query{RawText: "grapple"},
			domain.RetrieveOptions{Strategy: strategy})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))
	}
	assert.Equal(t, 2, metrics.embeddingErrors[testModel])
	assert.Contains(t, sink.stages(), "embed:failed")

	// Lexical still works.
	res, err := svc.Retrieve(context.Background(), domain.Query{RawText: "grapple"},
		domain.RetrieveOptions{Strategy: domain.StrategyLexical})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 2)
}

func TestRetrievalService_EmptyScope(t *testing.T) {
	router := &fakeRouter{}
	svc, emb := newTestRetrieval(t, []float32{1, 0}, grappleCorpus()...)
	svc.router = router

	res, err := svc.Retrieve(context.Background(), domain.Query{RawText: "grapple"},
		domain.RetrieveOptions{Scope: &domain.Scope{}})
	require.NoError(t, err)
	assert.NotNil(t, res.Hits)
	assert.Empty(t, res.Hits)
	assert.Equal(t, 0, router.calls)
	assert.Equal(t, 0, emb.calls)

	// A category with no sections contributes nothing.
	res, err = svc.Retrieve(context.Background(), domain.Query{RawText: "grapple"},
		domain.RetrieveOptions{Scope: &domain.Scope{Categories: []domain.Category{domain.CategorySession}}})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestRetrievalService_MultiScopeFusion(t *testing.T) {
	secs := []domain.Section{
		embedded("r1", domain.CategoryRules, "rule one", 1, 0),
		embedded("r2", domain.CategoryRules, "rule two", 0.5, 0.866),
		embedded("c1", domain.CategoryCharacter, "strength", 0.9, 0.436),
	}
	svc, _ := newTestRetrieval(t, []float32{1, 0}, secs...)

	res, err := svc.Retrieve(context.Background(), domain.Query{RawText: "x"}, domain.RetrieveOptions{
		Scope: &domain.Scope{Categories: []domain.Category{domain.CategoryRules, domain.CategoryCharacter}},
	})
	require.NoError(t, err)

	// r1 and c1 both rank first in their scope; the tie goes to the lower ID.
	assert.Equal(t, []string{"c1", "r1", "r2"}, res.SectionIDs())
	assert.InDelta(t, 1.0/61, res.Hits[0].Score, 1e-12)
	assert.InDelta(t, 1.0/61, res.Hits[1].Score, 1e-12)
	assert.InDelta(t, 1.0/62, res.Hits[2].Score, 1e-12)

	// A single scope keeps raw strategy scores.
	single, err := svc.Retrieve(context.Background(), domain.Query{RawText: "x"}, domain.RetrieveOptions{
		Scope: &domain.Scope{Categories: []domain.Category{domain.CategoryRules}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, single.SectionIDs())
	assert.InDelta(t, 1.0, single.Hits[0].Score, 1e-6)
}

func TestRetrievalService_UsesRouter(t *testing.T) {
	secs := []domain.Section{
		embedded("r1", domain.CategoryRules, "rule one", 1, 0),
		embedded("c1", domain.CategoryCharacter, "strength", 0.9, 0.436),
	}
	svc, _ := newTestRetrieval(t, []float32{1, 0}, secs...)
	router := &fakeRouter{decision: domain.RoutingDecision{
		Scores: []domain.ScopeScore{{Category: domain.CategoryCharacter, Confidence: 0.9}},
		Scopes: []domain.Category{domain.CategoryCharacter},
	}}
	svc.router = router
	sink := &recordingSink{}
	svc.SetEventSink(sink)

	res, err := svc.Retrieve(context.Background(), domain.Query{ID: "q-1", RawText: "my strength"}, domain.RetrieveOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, router.calls)
	require.NotNil(t, res.Routing)
	assert.Equal(t, "q-1", res.Routing.QueryID)
	assert.Equal(t, []string{"c1"}, res.SectionIDs())

	assert.Equal(t, []string{
		"route:started", "route:completed",
		"embed:started", "embed:completed",
		"rank:started", "rank:completed",
		"complete:completed",
	}, sink.stages())
	for i, e := range sink.events {
		assert.Equal(t, "q-1", e.QueryID)
		assert.Equal(t, i+1, e.Seq)
	}
}

func TestRetrievalService_DegradedRoutingSearchesEverything(t *testing.T) {
	svc, _ := newTestRetrieval(t, []float32{1, 0}, grappleCorpus()...)
	svc.router = &fakeRouter{decision: domain.FullCorpusDecision("", "fake", "classifier timed out", testTime)}
	sink := &recordingSink{}
	svc.SetEventSink(sink)
	metrics := &countingMetrics{}
	svc.SetMetrics(metrics)

	res, err := svc.Retrieve(context.Background(), domain.Query{RawText: "grapple"}, domain.RetrieveOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 3)
	assert.True(t, res.Routing.Degraded)
	assert.Contains(t, sink.stages(), "route:degraded")
	assert.Equal(t, 1, metrics.retrievals)
	assert.Equal(t, 3, metrics.lastHits)
}

func TestRetrievalService_QueryEmbeddingMismatch(t *testing.T) {
	corpus := newTestCorpus(&fakeEmbedder{vector: []float32{1, 0}})
	require.NoError(t, corpus.Build(context.Background(), grappleCorpus()))

	tests := []struct {
		name     string
		embedder *fakeEmbedder
		contains string
	}{
		{"other model", &fakeEmbedder{vector: []float32{1, 0}, model: "other-embed"}, "other-embed"},
		{"other dimensions", &fakeEmbedder{vector: []float32{1, 0, 0}}, "3 dimensions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewRetrievalService(corpus, tt.embedder, nil, domain.RetrievalSettings{})
			for _, strategy := range []domain.Strategy{domain.StrategyDense, domain.StrategyHybrid} {
				_, err := svc.Retrieve(context.Background(), domain.Query{RawText: "grapple"},
					domain.RetrieveOptions{Strategy: strategy})
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrCorpusIntegrity))
				assert.Contains(t, err.Error(), tt.contains)
			}

			// Lexical ranking never embeds the query.
			res, err := svc.Retrieve(context.Background(), domain.Query{RawText: "grapple"},
				domain.RetrieveOptions{Strategy: domain.StrategyLexical})
			require.NoError(t, err)
			assert.NotEmpty(t, res.Hits)
		})
	}
}

func TestRetrievalService_ContextTurns(t *testing.T) {
	emb := &fakeEmbedder{
		vector: []float32{0, 1},
		byText: map[string][]float32{"what about it?\nhow does grappling work": {1, 0}},
	}
	corpus := newTestCorpus(emb)
	require.NoError(t, corpus.Build(context.Background(), grappleCorpus()))
	svc := NewRetrievalService(corpus, emb, nil, domain.RetrievalSettings{ContextTurns: 1})

	q := domain.Query{
		RawText: "what about it?",
		Context: []domain.ConversationTurn{
			{Role: domain.RoleUser, Content: "how does grappling work"},
			{Role: domain.RoleAssistant, Content: "You make an athletics check."},
		},
	}
	res, err := svc.Retrieve(context.Background(), q, domain.RetrieveOptions{K: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.SectionIDs())
}
