// Package events provides EventSink implementations for retrieval progress.
package events

import (
	"context"
	"sync"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Verify interface compliance.
var (
	_ driven.EventSink = (*ChannelSink)(nil)
	_ driven.EventSink = LogSink{}
	_ driven.EventSink = Multi{}
)

// ChannelSink forwards events to a buffered channel.
// When the buffer is full events are dropped so retrieval never stalls on a
// slow consumer; Dropped reports how many were lost.
type ChannelSink struct {
	ch chan domain.Event

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSink{ch: make(chan domain.Event, buffer)}
}

// Events returns the receive side of the channel.
func (s *ChannelSink) Events() <-chan domain.Event {
	return s.ch
}

// Emit sends the event without blocking.
func (s *ChannelSink) Emit(_ context.Context, e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
		s.dropped++
	}
}

// Dropped returns the number of events lost to a full buffer.
func (s *ChannelSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close closes the channel. Later events are discarded.
func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// LogSink writes events to the debug log.
type LogSink struct{}

// Emit logs the event. Degraded and failed stages are logged as warnings.
func (LogSink) Emit(_ context.Context, e domain.Event) {
	switch e.Status {
	case domain.StatusDegraded, domain.StatusFailed:
		logger.Warn("[%s #%d] %s %s %v", e.QueryID, e.Seq, e.Stage, e.Status, e.Payload)
	default:
		logger.Debug("[%s #%d] %s %s %v", e.QueryID, e.Seq, e.Stage, e.Status, e.Payload)
	}
}

// Multi fans an event out to several sinks in order.
type Multi []driven.EventSink

// Emit forwards the event to every non-nil sink.
func (m Multi) Emit(ctx context.Context, e domain.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, e)
		}
	}
}
