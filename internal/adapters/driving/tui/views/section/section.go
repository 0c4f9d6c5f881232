// Package section provides the full view of one retrieved section.
package section

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// View shows a hit's fields and wrapped text.
type View struct {
	styles *styles.Styles

	hit          *domain.Hit
	scrollOffset int
	width        int
	height       int
	ready        bool
}

// NewView creates a new section view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s, width: 80, height: 24}
}

// SetHit sets the hit to display and scrolls to the top.
func (v *View) SetHit(hit domain.Hit) {
	v.hit = &hit
	v.scrollOffset = 0
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the section view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if v.scrollOffset > 0 {
				v.scrollOffset--
			}
		case "down", "j":
			if v.scrollOffset < v.maxScrollOffset() {
				v.scrollOffset++
			}
		case "esc":
			return v, func() tea.Msg {
				return messages.ViewChanged{View: messages.ViewSearch}
			}
		}
	}
	return v, nil
}

func (v *View) visibleLines() int {
	return max(v.height-6, 1)
}

func (v *View) maxScrollOffset() int {
	return max(len(v.buildContent())-v.visibleLines(), 0)
}

// buildContent lays out the fields, a blank line, then the wrapped text.
func (v *View) buildContent() []string {
	if v.hit == nil {
		return nil
	}
	sec := &v.hit.Section

	lines := []string{
		formatField("ID", sec.ID),
		formatField("Category", sec.Category.String()),
		formatField("Rank", fmt.Sprintf("%d (score %.4f)", v.hit.Rank, v.hit.Score)),
	}
	if crumb := sec.Breadcrumb(); crumb != "" {
		lines = append(lines, formatField("Path", crumb))
	}
	if sec.SourcePath != "" {
		lines = append(lines, formatField("Source", sec.SourcePath))
	}
	if sec.ParentID != "" {
		lines = append(lines, formatField("Parent", sec.ParentID))
	}

	if len(sec.Metadata) > 0 {
		keys := make([]string, 0, len(sec.Metadata))
		for k := range sec.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, formatField(k, sec.Metadata[k]))
		}
	}

	lines = append(lines, "")
	wrapped := lipgloss.NewStyle().Width(max(v.width-4, 20)).Render(sec.Text)
	lines = append(lines, strings.Split(wrapped, "\n")...)
	return lines
}

func formatField(label, value string) string {
	return fmt.Sprintf("%-10s %s", label+":", value)
}

// View renders the section view.
func (v *View) View() string {
	var b strings.Builder

	title := "Section"
	if v.hit != nil && v.hit.Section.Title != "" {
		title = v.hit.Section.Title
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", min(max(v.width-4, 1), 60)))
	b.WriteString("\n\n")

	if v.hit == nil {
		b.WriteString(v.styles.Muted.Render("No section selected"))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	lines := v.buildContent()
	visible := v.visibleLines()
	end := min(v.scrollOffset+visible, len(lines))
	for _, line := range lines[v.scrollOffset:end] {
		if label, value, ok := strings.Cut(line, ":"); ok && !strings.Contains(label, " ") {
			b.WriteString(v.styles.Subtitle.Render(label + ":"))
			b.WriteString(v.styles.Normal.Render(value))
		} else {
			b.WriteString(v.styles.Normal.Render(line))
		}
		b.WriteString("\n")
	}

	if len(lines) > visible {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [Line %d-%d of %d]", v.scrollOffset+1, end, len(lines))))
	}

	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())
	return b.String()
}

func (v *View) renderHelp() string {
	return v.styles.Help.Render("[↑/↓] scroll  [esc] back")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Hit returns the displayed hit.
func (v *View) Hit() *domain.Hit {
	return v.hit
}

// ScrollOffset returns the first visible line.
func (v *View) ScrollOffset() int {
	return v.scrollOffset
}
