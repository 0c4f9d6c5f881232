package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for Lorekeeper resources.
	uriScheme = "lorekeeper://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Corpus == nil {
		return
	}

	// Static resource for listing sections.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sections",
		Name:        "sections",
		Description: "Sections of the live corpus snapshot",
		MIMEType:    "application/json",
	}, s.handleSectionsResource)

	// Static resource for corpus statistics.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "corpus/stats",
		Name:        "corpus-stats",
		Description: "Snapshot version, section counts and embedding model",
		MIMEType:    "application/json",
	}, s.handleStatsResource)

	// Template for section content.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "sections/{sectionId}",
		Name:        "section-content",
		Description: "Text of a specific section",
		MIMEType:    "text/plain",
	}, s.handleSectionResource)
}

// handleSectionsResource lists the sections of the live snapshot.
func (s *Server) handleSectionsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	sections := s.ports.Corpus.Filter()

	type sectionInfo struct {
		ID       string `json:"id"`
		Title    string `json:"title,omitempty"`
		Category string `json:"category"`
		URI      string `json:"uri"`
	}

	infos := make([]sectionInfo, len(sections))
	for i := range sections {
		infos[i] = sectionInfo{
			ID:       sections[i].ID,
			Title:    sections[i].Title,
			Category: sections[i].Category.String(),
			URI:      uriScheme + "sections/" + sections[i].ID,
		}
	}

	return jsonResult(req.Params.URI, infos)
}

// handleStatsResource describes the live snapshot.
func (s *Server) handleStatsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return jsonResult(req.Params.URI, s.ports.Corpus.Stats())
}

// handleSectionResource returns the text of a specific section.
func (s *Server) handleSectionResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractSectionID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	sec, err := s.ports.Corpus.Get(id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting section: %w", err)
	}

	var b strings.Builder
	if crumb := sec.Breadcrumb(); crumb != "" {
		b.WriteString(crumb)
		b.WriteString("\n\n")
	} else if sec.Title != "" {
		b.WriteString(sec.Title)
		b.WriteString("\n\n")
	}
	b.WriteString(sec.Text)

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     b.String(),
		}},
	}, nil
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSectionID extracts the section ID from a URI like lorekeeper://sections/{sectionId}.
func extractSectionID(uri string) string {
	const prefix = uriScheme + "sections/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
