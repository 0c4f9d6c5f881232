package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query      string   `json:"query" jsonschema:"the player question to find knowledge for"`
	K          int      `json:"k,omitempty" jsonschema:"number of sections to return (default from settings)"`
	Strategy   string   `json:"strategy,omitempty" jsonschema:"dense, lexical or hybrid (default from settings)"`
	Categories []string `json:"categories,omitempty" jsonschema:"restrict to these corpus categories and skip routing"`
	History    []string `json:"history,omitempty" jsonschema:"previous player messages, oldest first"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	QueryID  string       `json:"query_id"`
	Strategy string       `json:"strategy"`
	Routing  *RouteOutput `json:"routing,omitempty"`
	Hits     []HitOutput  `json:"hits"`
	Count    int          `json:"count"`
	Empty    bool         `json:"empty"`
}

// HitOutput represents a single ranked section.
type HitOutput struct {
	SectionID  string  `json:"section_id"`
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	Title      string  `json:"title,omitempty"`
	Category   string  `json:"category"`
	Breadcrumb string  `json:"breadcrumb,omitempty"`
	SourcePath string  `json:"source_path,omitempty"`
	Text       string  `json:"text"`
}

// RouteInput is the input schema for the route tool.
type RouteInput struct {
	Query string `json:"query" jsonschema:"the player question to classify"`
}

// ScoreOutput is one category confidence.
type ScoreOutput struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// RouteOutput is the output schema for the route tool.
type RouteOutput struct {
	Scopes         []string      `json:"scopes"`
	FullCorpus     bool          `json:"full_corpus"`
	Degraded       bool          `json:"degraded"`
	DegradedReason string        `json:"degraded_reason,omitempty"`
	Classifier     string        `json:"classifier"`
	Scores         []ScoreOutput `json:"scores"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Retrieve the rule, character-sheet and session-note sections relevant to a player question",
	}, s.handleRetrieve)

	if s.ports.Router != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "route",
			Description: "Show which knowledge categories a player question would be routed to",
		}, s.handleRoute)
	}
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	query := domain.Query{RawText: input.Query}
	for _, h := range input.History {
		query.Context = append(query.Context, domain.ConversationTurn{Role: domain.RoleUser, Content: h})
	}

	opts := domain.RetrieveOptions{K: input.K}
	if input.Strategy != "" {
		strategy, err := domain.ParseStrategy(input.Strategy)
		if err != nil {
			return nil, RetrieveOutput{}, err
		}
		opts.Strategy = strategy
	}
	if len(input.Categories) > 0 {
		opts.Scope = &domain.Scope{Categories: domain.ParseCategories(input.Categories)}
	}

	result, err := s.ports.Retrieval.Retrieve(ctx, query, opts)
	if err != nil {
		return nil, RetrieveOutput{}, fmt.Errorf("retrieve: %w", err)
	}

	output := RetrieveOutput{
		QueryID:  result.QueryID,
		Strategy: result.Strategy.String(),
		Hits:     make([]HitOutput, len(result.Hits)),
		Count:    len(result.Hits),
		Empty:    result.IsEmpty(),
	}
	if result.Routing != nil {
		r := toRouteOutput(result.Routing)
		output.Routing = &r
	}
	for i := range result.Hits {
		h := &result.Hits[i]
		output.Hits[i] = HitOutput{
			SectionID:  h.SectionID,
			Rank:       h.Rank,
			Score:      h.Score,
			Title:      h.Section.Title,
			Category:   h.Section.Category.String(),
			Breadcrumb: h.Section.Breadcrumb(),
			SourcePath: h.Section.SourcePath,
			Text:       h.Section.Text,
		}
	}

	return nil, output, nil
}

// handleRoute handles the route tool invocation.
func (s *Server) handleRoute(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RouteInput,
) (*mcp.CallToolResult, RouteOutput, error) {
	if input.Query == "" {
		return nil, RouteOutput{}, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	decision := s.ports.Router.Route(ctx, domain.Query{RawText: input.Query})
	return nil, toRouteOutput(&decision), nil
}

func toRouteOutput(d *domain.RoutingDecision) RouteOutput {
	out := RouteOutput{
		Scopes:         make([]string, len(d.Scopes)),
		FullCorpus:     d.IncludesFullCorpus,
		Degraded:       d.Degraded,
		DegradedReason: d.DegradedReason,
		Classifier:     d.Classifier,
		Scores:         make([]ScoreOutput, len(d.Scores)),
	}
	for i, c := range d.Scopes {
		out.Scopes[i] = c.String()
	}
	for i, sc := range d.Scores {
		out.Scores[i] = ScoreOutput{Category: sc.Category.String(), Confidence: sc.Confidence}
	}
	return out
}
