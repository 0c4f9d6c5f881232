package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// EventSink receives progress events while a query is processed.
// The transport (channel, log, websocket) is the sink's concern.
// Emit must not block the retrieval path for long.
type EventSink interface {
	Emit(ctx context.Context, event domain.Event)
}

// MetricsRecorder records retrieval telemetry.
type MetricsRecorder interface {
	// ObserveRetrieval records one completed retrieval.
	ObserveRetrieval(strategy domain.Strategy, elapsed time.Duration, hits int)

	// ObserveRouting records one routing decision.
	ObserveRouting(decision *domain.RoutingDecision)

	// IncEmbeddingError counts a failed embedding call.
	IncEmbeddingError(model string)

	// SetCorpusSize records the number of sections in the live snapshot.
	SetCorpusSize(sections int)
}
