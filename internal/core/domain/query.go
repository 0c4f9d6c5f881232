package domain

import "strings"

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one prior message in the chat.
type ConversationTurn struct {
	// Role is "user" or "assistant".
	Role string `json:"role" yaml:"role"`

	// Content is the message text.
	Content string `json:"content" yaml:"content"`
}

// Query is a single retrieval request. It is created per request and discarded
// after the response.
type Query struct {
	// ID correlates routing decisions, events and results.
	ID string

	// RawText is the user input.
	RawText string

	// NormalizedText is RawText with known entities replaced by placeholders.
	// Used for logging and classification; empty when no normaliser ran.
	NormalizedText string

	// Context holds prior turns, oldest first.
	Context []ConversationTurn

	// Embedding is computed on demand by dense retrieval.
	Embedding []float32
}

// ClassificationText returns the text a classifier should see.
func (q *Query) ClassificationText() string {
	if q.NormalizedText != "" {
		return q.NormalizedText
	}
	return q.RawText
}

// RetrievalText returns the raw text followed by up to turns prior user messages,
// most recent first. Assistant turns are ignored.
func (q *Query) RetrievalText(turns int) string {
	text := strings.TrimSpace(q.RawText)
	if turns <= 0 || len(q.Context) == 0 {
		return text
	}

	parts := []string{text}
	for i := len(q.Context) - 1; i >= 0 && len(parts) <= turns; i-- {
		turn := q.Context[i]
		if turn.Role != RoleUser {
			continue
		}
		if c := strings.TrimSpace(turn.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n")
}
