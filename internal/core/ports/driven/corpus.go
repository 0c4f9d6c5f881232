package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// CorpusSource supplies the sections to index.
// Sources are owned by the collaborators that edit knowledge (character sheets,
// session notes, rulebooks).
type CorpusSource interface {
	// Load returns the current sections. Embeddings are usually absent.
	Load(ctx context.Context) ([]domain.Section, error)

	// Name describes the source for logs, e.g. a file path.
	Name() string
}

// CorpusWatcher is an optional interface for sources that can signal changes.
type CorpusWatcher interface {
	// Watch calls onChange after the underlying knowledge changes, until ctx is done.
	Watch(ctx context.Context, onChange func()) error
}

// SectionStore persists embedded snapshots so unchanged sections are not
// re-embedded after a restart.
type SectionStore interface {
	// SaveSections replaces the stored snapshot.
	SaveSections(ctx context.Context, sections []domain.Section) error

	// LoadSections returns the stored snapshot, empty when none exists.
	LoadSections(ctx context.Context) ([]domain.Section, error)

	// GetSection returns one stored section or domain.ErrNotFound.
	GetSection(ctx context.Context, id string) (*domain.Section, error)
}
