package mcp

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	result *domain.RetrievalResult
	err    error

	lastQuery domain.Query
	lastOpts  domain.RetrieveOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	q domain.Query,
	opts domain.RetrieveOptions,
) (*domain.RetrievalResult, error) {
	m.lastQuery = q
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.RetrievalResult{QueryID: "q", Strategy: domain.StrategyDense, Hits: []domain.Hit{}}, nil
	}
	return m.result, nil
}

// mockRouterService is a mock implementation of driving.RouterService.
type mockRouterService struct {
	decision domain.RoutingDecision
}

func (m *mockRouterService) Route(_ context.Context, _ domain.Query) domain.RoutingDecision {
	return m.decision
}

func (m *mockRouterService) Categories() []domain.Category {
	return []domain.Category{domain.CategoryCharacter, domain.CategoryRules, domain.CategorySession}
}

// mockCorpusService is a mock implementation of driving.CorpusService.
type mockCorpusService struct {
	sections []domain.Section
	getErr   error
}

func (m *mockCorpusService) Build(_ context.Context, _ []domain.Section) error { return nil }
func (m *mockCorpusService) Rebuild(_ context.Context) error { return nil }

func (m *mockCorpusService) Get(id string) (*domain.Section, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for i := range m.sections {
		if m.sections[i].ID == id {
			sec := m.sections[i]
			return &sec, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockCorpusService) Filter(_ ...domain.Category) []domain.Section {
	return m.sections
}

func (m *mockCorpusService) Stats() domain.CorpusStats {
	return domain.CorpusStats{Version: 3, Sections: len(m.sections), EmbeddingModel: "hashing-v1"}
}
