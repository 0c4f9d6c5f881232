// Package mcp provides an MCP (Model Context Protocol) server adapter for Lorekeeper.
// It lets response-generation agents retrieve rulebook, character-sheet and
// session-note sections as grounding context.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
