// Package styles provides colour themes and styling for the TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// Theme defines the colour palette for the TUI.
type Theme struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Background lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Border     lipgloss.Color

	// Categories colours known corpus categories. Unknown categories use Secondary.
	Categories map[domain.Category]lipgloss.Color
}

// DefaultTheme returns the default parchment-on-slate palette.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:    lipgloss.Color("#E0A458"), // Amber
		Secondary:  lipgloss.Color("#7FB7BE"), // Teal
		Background: lipgloss.Color("#1F2430"),
		Foreground: lipgloss.Color("#E6E1CF"), // Parchment
		Muted:      lipgloss.Color("#707A8C"),
		Success:    lipgloss.Color("#A6CC70"),
		Warning:    lipgloss.Color("#FFCC66"),
		Error:      lipgloss.Color("#F28779"),
		Border:     lipgloss.Color("#3D4455"),
		Categories: map[domain.Category]lipgloss.Color{
			domain.CategoryRules:     lipgloss.Color("#73D0FF"),
			domain.CategoryCharacter: lipgloss.Color("#D4BFFF"),
			domain.CategorySession:   lipgloss.Color("#95E6CB"),
		},
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	theme *Theme

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style

	// Selected highlights the focused list row.
	Selected lipgloss.Style

	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style

	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Help       lipgloss.Style
	Border     lipgloss.Style

	// Score renders relevance scores.
	Score lipgloss.Style

	// Header is a table header cell.
	Header lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		theme: theme,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		Subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Secondary),

		Normal: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Background).
			Background(theme.Primary),

		Error: lipgloss.NewStyle().
			Foreground(theme.Error),

		Success: lipgloss.NewStyle().
			Foreground(theme.Success),

		Warning: lipgloss.NewStyle().
			Foreground(theme.Warning),

		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		StatusBar: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Background(lipgloss.Color("#191E2A")).
			Padding(0, 1),

		Help: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),

		Score: lipgloss.NewStyle().
			Foreground(theme.Success),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}

// Category renders a category badge in its theme colour.
func (s *Styles) Category(c domain.Category) string {
	colour, ok := s.theme.Categories[c]
	if !ok {
		colour = s.theme.Secondary
	}
	return lipgloss.NewStyle().Foreground(colour).Render("[" + c.String() + "]")
}
