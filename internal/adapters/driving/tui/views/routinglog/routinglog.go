// Package routinglog provides the routing audit view for the TUI.
// Operators review past decisions and annotate the scopes that should have
// been chosen.
package routinglog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// DefaultLimit is the number of records loaded.
const DefaultLimit = 50

// ErrNoRoutingLog is reported when the view has no routing log service.
var ErrNoRoutingLog = errors.New("routing log not available")

// View lists routing records, newest first.
type View struct {
	styles     *styles.Styles
	service    driving.RoutingLogService
	categories []domain.Category
	ctx        context.Context

	records  []domain.RoutingRecord
	selected int
	width    int
	height   int
	ready    bool
	loading  bool
	notice   string
	err      error
}

// NewView creates a routing log view. Categories are offered for annotation
// by number, in the given order.
func NewView(s *styles.Styles, service driving.RoutingLogService, categories []domain.Category) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:     s,
		service:    service,
		categories: categories,
		ctx:        context.Background(),
		width:      80,
		height:     24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the records.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.load()
}

func (v *View) load() tea.Cmd {
	return func() tea.Msg {
		if v.service == nil {
			return messages.RoutingLogLoaded{Err: ErrNoRoutingLog}
		}
		records, err := v.service.List(v.ctx, DefaultLimit)
		return messages.RoutingLogLoaded{Records: records, Err: err}
	}
}

func (v *View) annotate(id string, correct []domain.Category) tea.Cmd {
	return func() tea.Msg {
		if v.service == nil {
			return messages.RecordAnnotated{ID: id, Err: ErrNoRoutingLog}
		}
		err := v.service.Annotate(v.ctx, id, correct)
		return messages.RecordAnnotated{ID: id, Correct: correct, Err: err}
	}
}

// Update handles messages for the routing log view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.RoutingLogLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.records = msg.Records
		if v.selected >= len(v.records) {
			v.selected = max(len(v.records)-1, 0)
		}
		return v, nil

	case messages.RecordAnnotated:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		for i := range v.records {
			if v.records[i].ID == msg.ID {
				v.records[i].CorrectScopes = msg.Correct
			}
		}
		v.notice = fmt.Sprintf("Annotated %s", msg.ID)
		return v, nil
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch key := msg.String(); key {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case "down", "j":
		if v.selected < len(v.records)-1 {
			v.selected++
		}
	case "r":
		v.loading = true
		v.notice = ""
		return v, v.load()
	case "y":
		// Confirm the decision: the chosen scopes were correct.
		if r := v.SelectedRecord(); r != nil && len(r.Decision.Scopes) > 0 {
			return v, v.annotate(r.ID, r.Decision.Scopes)
		}
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	default:
		n, err := strconv.Atoi(key)
		if err == nil && n >= 1 && n <= len(v.categories) {
			if r := v.SelectedRecord(); r != nil {
				return v, v.annotate(r.ID, []domain.Category{v.categories[n-1]})
			}
		}
	}
	return v, nil
}

// View renders the routing log.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Routing Log"))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading routing decisions..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.records) == 0:
		b.WriteString(v.styles.Muted.Render("No routing decisions recorded."))
	default:
		visible := max((v.height-8)/2, 1)
		start := 0
		if v.selected >= visible {
			start = v.selected - visible + 1
		}
		end := min(start+visible, len(v.records))
		for i := start; i < end; i++ {
			b.WriteString(v.renderRecord(i, &v.records[i]))
			b.WriteString("\n")
		}
	}

	if v.notice != "" {
		b.WriteString("\n")
		b.WriteString(v.styles.Success.Render(v.notice))
	}
	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())
	return b.String()
}

func (v *View) renderRecord(index int, r *domain.RoutingRecord) string {
	query := r.QueryText
	if maxLen := max(v.width-24, 10); len([]rune(query)) > maxLen {
		query = string([]rune(query)[:maxLen-3]) + "..."
	}
	head := fmt.Sprintf("%s  %s", r.CreatedAt.Local().Format("01-02 15:04"), query)
	if index == v.selected {
		head = v.styles.Selected.Render("> " + head)
	} else {
		head = v.styles.Normal.Render("  " + head)
	}

	var detail strings.Builder
	detail.WriteString("    ")
	for _, c := range r.Decision.Scopes {
		detail.WriteString(v.styles.Category(c))
		detail.WriteString(v.styles.Muted.Render(fmt.Sprintf(" %.2f ", r.Decision.ConfidenceFor(c))))
	}
	if r.Decision.IncludesFullCorpus {
		detail.WriteString(v.styles.Muted.Render("+full "))
	}
	if r.Decision.Degraded {
		detail.WriteString(v.styles.Warning.Render("degraded "))
	}
	if len(r.CorrectScopes) > 0 {
		names := make([]string, len(r.CorrectScopes))
		for i, c := range r.CorrectScopes {
			names[i] = c.String()
		}
		detail.WriteString(v.styles.Success.Render("✓ " + strings.Join(names, ",")))
	}
	return head + "\n" + detail.String()
}

func (v *View) renderHelp() string {
	parts := []string{"[y] chosen scopes correct"}
	for i, c := range v.categories {
		if i >= 9 {
			break
		}
		parts = append(parts, fmt.Sprintf("[%d] %s", i+1, c))
	}
	parts = append(parts, "[r] reload", "[esc] back")
	return v.styles.Help.Render(strings.Join(parts, "  "))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Records returns the loaded records.
func (v *View) Records() []domain.RoutingRecord {
	return v.records
}

// SelectedRecord returns the selected record, or nil when none are loaded.
func (v *View) SelectedRecord() *domain.RoutingRecord {
	if v.selected < 0 || v.selected >= len(v.records) {
		return nil
	}
	return &v.records[v.selected]
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
