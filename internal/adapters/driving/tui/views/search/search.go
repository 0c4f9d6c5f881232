// Package search provides the question view: input, routing decision and
// ranked sections.
package search

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// View is the question view.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QueryInput
	list      *list.HitList
	statusbar *status.Bar

	retrieval driving.RetrievalService
	ctx       context.Context

	// strategy is empty until cycled, so the configured default applies.
	strategy domain.Strategy
	history  []domain.ConversationTurn
	routing  *domain.RoutingDecision

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool
}

// NewView creates a new question view.
func NewView(s *styles.Styles, km *keymap.KeyMap, retrieval driving.RetrievalService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:     s,
		keymap:     km,
		input:      input.NewQueryInput(s),
		list:       list.NewHitList(s),
		statusbar:  status.NewBar(s, km),
		retrieval:  retrieval,
		ctx:        context.Background(),
		width:      80,
		height:     24,
		focusInput: true,
	}
}

// WithContext sets the context for retrieval calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the question view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.RetrievalCompleted:
		v.handleRetrievalCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	if keymap.Matches(msg.String(), v.keymap.Strategy) {
		v.cycleStrategy()
		return v, nil
	}

	if v.focusInput {
		if msg.Type == tea.KeyEnter {
			query := strings.TrimSpace(v.input.Value())
			if query == "" {
				return v, nil
			}
			v.statusbar.SetState(status.StateRetrieving)
			v.focusInput = false
			v.input.Blur()
			return v, v.retrieve(query)
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	switch {
	case msg.Type == tea.KeyEnter:
		if hit := v.list.SelectedHit(); hit != nil {
			selected := *hit
			return v, func() tea.Msg {
				return messages.HitSelected{Hit: selected}
			}
		}
	case keymap.Matches(msg.String(), v.keymap.NewSearch):
		v.focusInput = true
		v.input.SetValue("")
		return v, v.input.Focus()
	default:
		v.list, _ = v.list.Update(msg)
	}
	return v, nil
}

// cycleStrategy steps through dense, lexical and hybrid. The first press
// replaces the configured default with dense.
func (v *View) cycleStrategy() {
	all := domain.AllStrategies()
	next := all[0]
	for i, s := range all {
		if s == v.strategy {
			next = all[(i+1)%len(all)]
		}
	}
	v.strategy = next
	v.statusbar.SetStrategy(next)
	v.statusbar.SetMessage("Strategy: " + next.String())
}

// retrieve runs the question in the background. Earlier questions of the
// session are passed as conversation context.
func (v *View) retrieve(text string) tea.Cmd {
	query := domain.Query{RawText: text, Context: append([]domain.ConversationTurn(nil), v.history...)}
	opts := domain.RetrieveOptions{Strategy: v.strategy}
	v.history = append(v.history, domain.ConversationTurn{Role: domain.RoleUser, Content: text})

	return func() tea.Msg {
		if v.retrieval == nil {
			return messages.ErrorOccurred{Err: ErrNoRetrievalService}
		}
		result, err := v.retrieval.Retrieve(v.ctx, query, opts)
		return messages.RetrievalCompleted{Result: result, Err: err}
	}
}

func (v *View) handleRetrievalCompleted(msg messages.RetrievalCompleted) {
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}
	if msg.Result == nil {
		v.setError(fmt.Errorf("no result returned"))
		return
	}

	v.err = nil
	v.routing = msg.Result.Routing
	v.list.SetHits(msg.Result.Hits)
	v.statusbar.SetMessage("")
	v.statusbar.SetStrategy(msg.Result.Strategy)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetResult(len(msg.Result.Hits), msg.Result.Elapsed)
	v.focusInput = false
	v.input.Blur()
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
	v.focusInput = true
	v.input.Focus()
}

// View renders the question view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	parts := make([]string, 0, 10)
	parts = append(parts, v.styles.Title.Render("Lorekeeper"), "", v.input.View(), "")

	if v.err != nil {
		parts = append(parts, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}
	if v.routing != nil {
		parts = append(parts, v.renderRouting(), "")
	}

	parts = append(parts, v.list.View(), "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderRouting summarises the routing decision on one line.
func (v *View) renderRouting() string {
	d := v.routing
	var b strings.Builder
	b.WriteString(v.styles.Muted.Render("Routed to "))
	for i, c := range d.Scopes {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(v.styles.Category(c))
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf(" %.2f", d.ConfidenceFor(c))))
	}
	if d.IncludesFullCorpus {
		if len(d.Scopes) > 0 {
			b.WriteString(" ")
		}
		b.WriteString(v.styles.Muted.Render("+ full corpus"))
	}
	if d.Degraded {
		b.WriteString(" ")
		b.WriteString(v.styles.Warning.Render("(degraded: " + d.DegradedReason + ")"))
	}
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-12)
	v.statusbar.SetWidth(width)
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Query returns the current input text.
func (v *View) Query() string {
	return v.input.Value()
}

// SetQuery sets the input text.
func (v *View) SetQuery(query string) {
	v.input.SetValue(query)
}

// Hits returns the ranked sections of the last retrieval.
func (v *View) Hits() []domain.Hit {
	return v.list.Hits()
}

// SelectedIndex returns the index of the selected hit.
func (v *View) SelectedIndex() int {
	return v.list.Selected()
}

// Routing returns the routing decision of the last retrieval, if any.
func (v *View) Routing() *domain.RoutingDecision {
	return v.routing
}

// Strategy returns the strategy override, empty for the configured default.
func (v *View) Strategy() domain.Strategy {
	return v.strategy
}

// History returns the questions asked in this session, oldest first.
func (v *View) History() []domain.ConversationTurn {
	return v.history
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// Reset returns the view to input mode and forgets the conversation.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.list.SetHits(nil)
	v.routing = nil
	v.history = nil
	v.err = nil
	v.statusbar.Clear()
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}
