// Package tui provides an interactive terminal explorer for lorekeeper.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI uses.
type Ports struct {
	// Retrieval ranks sections for a question. Required.
	Retrieval driving.RetrievalService

	// Router previews routing decisions. Optional.
	Router driving.RouterService

	// Corpus provides snapshot statistics for the menu. Optional.
	Corpus driving.CorpusService

	// RoutingLog lists and annotates past routing decisions. Optional.
	RoutingLog driving.RoutingLogService
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
