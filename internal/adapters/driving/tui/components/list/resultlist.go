// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// linesPerHit is the rendered height of one hit.
const linesPerHit = 3

// HitList displays ranked sections in a navigable list.
type HitList struct {
	hits     []domain.Hit
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewHitList creates a new hit list component.
func NewHitList(s *styles.Styles) *HitList {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &HitList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the list.
func (l *HitList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation.
func (l *HitList) Update(msg tea.Msg) (*HitList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		}
	}
	return l, nil
}

// View renders the visible window of hits around the selection.
func (l *HitList) View() string {
	if len(l.hits) == 0 {
		return l.styles.Muted.Render("No relevant knowledge found.")
	}

	lines := make([]string, 0, len(l.hits)*linesPerHit+2)
	lines = append(lines, l.styles.Subtitle.Render(fmt.Sprintf("Sections (%d)", len(l.hits))), "")

	visible := max((l.height-4)/linesPerHit, 1)
	start := 0
	if l.selected >= visible {
		start = l.selected - visible + 1
	}
	end := min(start+visible, len(l.hits))

	for i := start; i < end; i++ {
		lines = append(lines, l.renderHit(i, &l.hits[i]))
	}
	return strings.Join(lines, "\n")
}

func (l *HitList) renderHit(index int, hit *domain.Hit) string {
	sec := &hit.Section
	heading := sec.Title
	if heading == "" {
		heading = sec.ID
	}
	maxHeading := max(l.width-28, 10)
	heading = truncate(heading, maxHeading)

	label := fmt.Sprintf("%2d. %-*s", hit.Rank, maxHeading, heading)
	score := fmt.Sprintf("%.3f", hit.Score)

	var first string
	if index == l.selected {
		first = l.styles.Selected.Render("> "+label+"  "+score) + " " + l.styles.Category(sec.Category)
	} else {
		first = l.styles.Normal.Render("  "+label+"  ") + l.styles.Score.Render(score) + " " + l.styles.Category(sec.Category)
	}

	crumb := sec.Breadcrumb()
	if crumb == "" {
		crumb = sec.ID
	}
	second := l.styles.Muted.Render("      " + truncate(crumb, max(l.width-8, 20)))

	preview := strings.Join(strings.Fields(sec.Text), " ")
	third := l.styles.Muted.Render("      " + truncate(preview, max(l.width-8, 20)))

	return first + "\n" + second + "\n" + third
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// SetHits replaces the hits and resets the selection.
func (l *HitList) SetHits(hits []domain.Hit) {
	l.hits = hits
	l.selected = 0
}

// Hits returns the current hits.
func (l *HitList) Hits() []domain.Hit {
	return l.hits
}

// Selected returns the index of the selected hit.
func (l *HitList) Selected() int {
	return l.selected
}

// SetSelected sets the selected index when it is in range.
func (l *HitList) SetSelected(index int) {
	if index >= 0 && index < len(l.hits) {
		l.selected = index
	}
}

// SelectedHit returns the selected hit, or nil when the list is empty.
func (l *HitList) SelectedHit() *domain.Hit {
	if l.selected < 0 || l.selected >= len(l.hits) {
		return nil
	}
	return &l.hits[l.selected]
}

// MoveUp moves selection up.
func (l *HitList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves selection down.
func (l *HitList) MoveDown() {
	if l.selected < len(l.hits)-1 {
		l.selected++
	}
}

// SetDimensions sets the component dimensions.
func (l *HitList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}

// Count returns the number of hits.
func (l *HitList) Count() int {
	return len(l.hits)
}

// IsEmpty returns whether the list is empty.
func (l *HitList) IsEmpty() bool {
	return len(l.hits) == 0
}
