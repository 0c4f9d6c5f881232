package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Ensure SectionStore implements the interface.
var _ driven.SectionStore = (*SectionStore)(nil)

// SectionStore is an in-memory implementation of driven.SectionStore.
// Sections are copied on the way in and out so callers cannot alias them.
type SectionStore struct {
	mu       sync.RWMutex
	sections []domain.Section
	byID     map[string]int
}

// NewSectionStore creates a new in-memory section store.
func NewSectionStore() *SectionStore {
	return &SectionStore{byID: make(map[string]int)}
}

// SaveSections replaces the stored snapshot.
func (s *SectionStore) SaveSections(_ context.Context, sections []domain.Section) error {
	copied := make([]domain.Section, len(sections))
	byID := make(map[string]int, len(sections))
	for i := range sections {
		copied[i] = cloneSection(sections[i])
		byID[sections[i].ID] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections = copied
	s.byID = byID
	return nil
}

// LoadSections returns the stored snapshot in saved order.
func (s *SectionStore) LoadSections(_ context.Context) ([]domain.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Section, len(s.sections))
	for i := range s.sections {
		out[i] = cloneSection(s.sections[i])
	}
	return out, nil
}

// GetSection returns one stored section.
func (s *SectionStore) GetSection(_ context.Context, id string) (*domain.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	sec := cloneSection(s.sections[i])
	return &sec, nil
}

func cloneSection(in domain.Section) domain.Section {
	out := in
	if in.Embedding != nil {
		out.Embedding = append([]float32(nil), in.Embedding...)
	}
	if in.Hierarchy != nil {
		out.Hierarchy = append([]string(nil), in.Hierarchy...)
	}
	if in.Metadata != nil {
		out.Metadata = make(map[string]string, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
