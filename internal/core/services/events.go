package services

import (
	"context"
	"time"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// emitter numbers the events of one query. It is used from a single
// goroutine so sequence numbers match emission order.
type emitter struct {
	sink    driven.EventSink
	queryID string
	seq     int
	now     func() time.Time
}

func newEmitter(sink driven.EventSink, queryID string, now func() time.Time) *emitter {
	return &emitter{sink: sink, queryID: queryID, now: now}
}

func (e *emitter) emit(ctx context.Context, stage domain.Stage, status domain.EventStatus, payload map[string]any) {
	if e.sink == nil {
		return
	}
	e.seq++
	e.sink.Emit(ctx, domain.Event{
		QueryID: e.queryID,
		Seq:     e.seq,
		Stage:   stage,
		Status:  status,
		Payload: payload,
		At:      e.now(),
	})
}
