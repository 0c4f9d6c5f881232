// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// RetrievalCompleted carries a retrieval result back to the model.
type RetrievalCompleted struct {
	Result *domain.RetrievalResult
	Err    error
}

// HitSelected is sent when a ranked section is opened.
type HitSelected struct {
	Hit domain.Hit
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewSearch is the question input and ranked sections view.
	ViewSearch
	// ViewSection shows one retrieved section in full.
	ViewSection
	// ViewRoutingLog lists recorded routing decisions.
	ViewRoutingLog
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewSearch:
		return "search"
	case ViewSection:
		return "section"
	case ViewRoutingLog:
		return "routing_log"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// RoutingLogLoaded carries recorded routing decisions, newest first.
type RoutingLogLoaded struct {
	Records []domain.RoutingRecord
	Err     error
}

// RecordAnnotated signals a routing record received its correct scopes.
type RecordAnnotated struct {
	ID      string
	Correct []domain.Category
	Err     error
}
