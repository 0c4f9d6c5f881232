package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns hits with routing", func(t *testing.T) {
		mock := &mockRetrievalService{
			result: &domain.RetrievalResult{
				QueryID:  "q-1",
				Strategy: domain.StrategyHybrid,
				Routing: &domain.RoutingDecision{
					Scopes:     []domain.Category{domain.CategoryRules},
					Scores:     []domain.ScopeScore{{Category: domain.CategoryRules, Confidence: 0.9}},
					Classifier: "keyword",
				},
				Hits: []domain.Hit{{
					SectionID: "rules.grappling",
					Rank:      1,
					Score:     0.032,
					Section: domain.Section{
						ID:        "rules.grappling",
						Title:     "Grappling",
						Text:      "Use the Attack action to grapple.",
						Category:  domain.CategoryRules,
						Hierarchy: []string{"Combat", "Grappling"},
					},
				}},
			},
		}

		server, err := NewServer(&Ports{Retrieval: mock})
		require.NoError(t, err)

		_, out, err := server.handleRetrieve(ctx, nil, RetrieveInput{
			Query:    "How does grappling work?",
			K:        3,
			Strategy: "hybrid",
			History:  []string{"I attack the orc"},
		})
		require.NoError(t, err)

		assert.Equal(t, "q-1", out.QueryID)
		assert.Equal(t, "hybrid", out.Strategy)
		assert.Equal(t, 1, out.Count)
		assert.False(t, out.Empty)
		assert.Equal(t, "Combat > Grappling", out.Hits[0].Breadcrumb)
		assert.Equal(t, "rules", out.Hits[0].Category)
		require.NotNil(t, out.Routing)
		assert.Equal(t, []string{"rules"}, out.Routing.Scopes)

		assert.Equal(t, 3, mock.lastOpts.K)
		assert.Equal(t, domain.StrategyHybrid, mock.lastOpts.Strategy)
		assert.Nil(t, mock.lastOpts.Scope)
		require.Len(t, mock.lastQuery.Context, 1)
		assert.Equal(t, domain.RoleUser, mock.lastQuery.Context[0].Role)
	})

	t.Run("categories bypass the router", func(t *testing.T) {
		mock := &mockRetrievalService{}
		server, err := NewServer(&Ports{Retrieval: mock})
		require.NoError(t, err)

		_, out, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "my strength", Categories: []string{" Character "}})
		require.NoError(t, err)

		require.NotNil(t, mock.lastOpts.Scope)
		assert.Equal(t, []domain.Category{domain.CategoryCharacter}, mock.lastOpts.Scope.Categories)
		assert.True(t, out.Empty)
		assert.NotNil(t, out.Hits)
	})

	t.Run("invalid strategy", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "x", Strategy: "semantic"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("returns error on retrieval failure", func(t *testing.T) {
		mock := &mockRetrievalService{err: domain.NewEmbeddingUnavailable("nomic-embed-text", errors.New("refused"))}
		server, err := NewServer(&Ports{Retrieval: mock})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "test"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}

func TestServer_handleRoute(t *testing.T) {
	ctx := context.Background()
	router := &mockRouterService{
		decision: domain.FullCorpusDecision("q", "llm", "classifier timed out", time.Now()),
	}

	server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Router: router})
	require.NoError(t, err)

	_, out, err := server.handleRoute(ctx, nil, RouteInput{Query: "what is my AC"})
	require.NoError(t, err)
	assert.True(t, out.FullCorpus)
	assert.True(t, out.Degraded)
	assert.Equal(t, "classifier timed out", out.DegradedReason)
	assert.Empty(t, out.Scopes)

	_, _, err = server.handleRoute(ctx, nil, RouteInput{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
