package mcp

import (
	"net/http"

	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval ranks sections for a query.
	Retrieval driving.RetrievalService

	// Router exposes routing decisions. Optional.
	Router driving.RouterService

	// Corpus serves section resources. Optional.
	Corpus driving.CorpusService

	// Metrics is mounted at /metrics in HTTP mode. Optional.
	Metrics http.Handler
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
