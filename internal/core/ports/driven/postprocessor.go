package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// PostProcessor transforms corpus sections before indexing.
// PostProcessors are chained in a pipeline (e.g., sentence chunking).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process returns the transformed sections. The input is not modified.
	Process(ctx context.Context, sections []domain.Section) ([]domain.Section, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the sections through all processors in order.
	Process(ctx context.Context, sections []domain.Section) ([]domain.Section, error)
}
