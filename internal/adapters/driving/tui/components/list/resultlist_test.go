package list

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

func sampleHits() []domain.Hit {
	return []domain.Hit{
		{SectionID: "rules.grapple", Rank: 1, Score: 0.91, Section: domain.Section{
			ID: "rules.grapple", Title: "Grappling", Category: domain.CategoryRules,
			Text: "When you want to grab a creature, you can use the Attack action.", Hierarchy: []string{"Combat", "Grappling"},
		}},
		{SectionID: "character.str", Rank: 2, Score: 0.72, Section: domain.Section{
			ID: "character.str", Title: "Strength", Category: domain.CategoryCharacter, Text: "Strength 16 (+3)",
		}},
		{SectionID: "session.3", Rank: 3, Score: 0.40, Section: domain.Section{
			ID: "session.3", Category: domain.CategorySession, Text: "We met the innkeeper Bram.",
		}},
	}
}

func TestNewHitList(t *testing.T) {
	l := NewHitList(styles.DefaultStyles())

	require.NotNil(t, l)
	assert.Equal(t, 0, l.Selected())
	assert.True(t, l.IsEmpty())
	assert.Nil(t, l.Init())
}

func TestNewHitList_NilStyles(t *testing.T) {
	l := NewHitList(nil)

	require.NotNil(t, l)
	assert.NotNil(t, l.styles)
}

func TestHitList_SetHits(t *testing.T) {
	l := NewHitList(nil)
	l.SetSelected(0)

	l.SetHits(sampleHits())

	assert.Equal(t, 3, l.Count())
	assert.False(t, l.IsEmpty())
	assert.Equal(t, sampleHits(), l.Hits())
}

func TestHitList_SetHits_ResetsSelection(t *testing.T) {
	l := NewHitList(nil)
	l.SetHits(sampleHits())
	l.SetSelected(2)

	l.SetHits(sampleHits()[:1])

	assert.Equal(t, 0, l.Selected())
}

func TestHitList_SetSelected(t *testing.T) {
	l := NewHitList(nil)
	l.SetHits(sampleHits())

	l.SetSelected(1)
	assert.Equal(t, 1, l.Selected())

	l.SetSelected(10)
	assert.Equal(t, 1, l.Selected())

	l.SetSelected(-1)
	assert.Equal(t, 1, l.Selected())
}

func TestHitList_Navigation(t *testing.T) {
	l := NewHitList(nil)
	l.SetHits(sampleHits())

	l.MoveUp()
	assert.Equal(t, 0, l.Selected())

	l.MoveDown()
	l.MoveDown()
	l.MoveDown()
	assert.Equal(t, 2, l.Selected())

	l, _ = l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	assert.Equal(t, 1, l.Selected())

	l, _ = l.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, l.Selected())
}

func TestHitList_SelectedHit(t *testing.T) {
	l := NewHitList(nil)
	assert.Nil(t, l.SelectedHit())

	l.SetHits(sampleHits())
	l.SetSelected(1)

	hit := l.SelectedHit()
	require.NotNil(t, hit)
	assert.Equal(t, "character.str", hit.SectionID)
}

func TestHitList_View_Empty(t *testing.T) {
	assert.Contains(t, NewHitList(nil).View(), "No relevant knowledge found.")
}

func TestHitList_View(t *testing.T) {
	l := NewHitList(nil)
	l.SetDimensions(100, 30)
	l.SetHits(sampleHits())

	view := l.View()

	assert.Contains(t, view, "Sections (3)")
	assert.Contains(t, view, "Grappling")
	assert.Contains(t, view, "Combat > Grappling")
	assert.Contains(t, view, "0.910")
	assert.Contains(t, view, "[rules]")
	// Untitled sections fall back to their ID.
	assert.Contains(t, view, "session.3")
}

func TestHitList_View_ScrollsToSelection(t *testing.T) {
	l := NewHitList(nil)
	l.SetDimensions(80, 7) // room for one hit
	l.SetHits(sampleHits())
	l.SetSelected(2)

	view := l.View()

	assert.Contains(t, view, "session.3")
	assert.NotContains(t, view, "Grappling")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
