// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// State represents what the search view is doing.
type State string

const (
	StateReady      State = "ready"
	StateRetrieving State = "retrieving"
	StateError      State = "error"
	StateResults    State = "results"
)

// Bar displays the active strategy, retrieval status and keybinding hints.
type Bar struct {
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	state    State
	message  string
	strategy domain.Strategy
	hits     int
	elapsed  time.Duration
	width    int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		width:  80,
	}
}

// Init initialises the status bar.
func (b *Bar) Init() tea.Cmd {
	return nil
}

// Update is a no-op; the bar is driven through its setters.
func (b *Bar) Update(_ tea.Msg) (*Bar, tea.Cmd) {
	return b, nil
}

// View renders the status bar.
func (b *Bar) View() string {
	left := b.renderLeft()
	right := b.renderRight()
	inner := b.width - b.styles.StatusBar.GetHorizontalFrameSize()
	padding := max(inner-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return b.styles.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (b *Bar) renderLeft() string {
	strategy := b.strategy.String()
	if strategy == "" {
		strategy = "default"
	}
	prefix := b.styles.Subtitle.Render(strategy) + " "

	switch b.state {
	case StateRetrieving:
		return prefix + b.styles.Muted.Render("Retrieving...")
	case StateError:
		if b.message != "" {
			return prefix + b.styles.Error.Render("Error: "+b.message)
		}
		return prefix + b.styles.Error.Render("Error")
	case StateResults:
		return prefix + b.styles.Normal.Render(fmt.Sprintf("%d sections in %s", b.hits, b.elapsed.Round(time.Microsecond)))
	case StateReady:
	}
	if b.message != "" {
		return prefix + b.styles.Muted.Render(b.message)
	}
	return prefix + b.styles.Muted.Render("Ready")
}

func (b *Bar) renderRight() string {
	var bindings []key.Binding
	if b.state == StateResults && b.hits > 0 {
		bindings = b.keymap.ResultsHelp()
	} else {
		bindings = b.keymap.ShortHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return b.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (b *Bar) SetState(state State) {
	b.state = state
}

// State returns the current state.
func (b *Bar) State() State {
	return b.state
}

// SetMessage sets a custom message.
func (b *Bar) SetMessage(message string) {
	b.message = message
}

// Message returns the current message.
func (b *Bar) Message() string {
	return b.message
}

// SetStrategy sets the strategy shown on the left.
func (b *Bar) SetStrategy(s domain.Strategy) {
	b.strategy = s
}

// SetResult records the hit count and latency of the last retrieval.
func (b *Bar) SetResult(hits int, elapsed time.Duration) {
	b.hits = hits
	b.elapsed = elapsed
}

// Hits returns the hit count of the last retrieval.
func (b *Bar) Hits() int {
	return b.hits
}

// SetWidth sets the status bar width.
func (b *Bar) SetWidth(width int) {
	b.width = width
}

// Width returns the current width.
func (b *Bar) Width() int {
	return b.width
}

// Clear resets the bar, keeping the strategy.
func (b *Bar) Clear() {
	b.state = StateReady
	b.message = ""
	b.hits = 0
	b.elapsed = 0
}
