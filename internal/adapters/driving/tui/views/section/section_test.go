package section

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

func sampleHit() domain.Hit {
	return domain.Hit{
		SectionID: "rules.fireball#s2",
		Rank:      1,
		Score:     0.8123,
		Section: domain.Section{
			ID:         "rules.fireball#s2",
			Title:      "Fireball",
			Text:       "Each creature in a 20-foot-radius sphere must make a Dexterity saving throw.",
			Category:   domain.CategoryRules,
			SourcePath: "phb.pdf#p241",
			ParentID:   "rules.fireball",
			Hierarchy:  []string{"Spells", "Evocation", "Fireball"},
			Metadata:   map[string]string{"level": "3"},
		},
	}
}

func TestNewView(t *testing.T) {
	v := NewView(nil)

	require.NotNil(t, v)
	assert.Nil(t, v.Hit())
	assert.Nil(t, v.Init())
	assert.Contains(t, v.View(), "No section selected")
}

func TestView_Render(t *testing.T) {
	v := NewView(nil)
	v.SetDimensions(100, 40)
	v.SetHit(sampleHit())

	out := v.View()

	assert.Contains(t, out, "Fireball")
	assert.Contains(t, out, "rules.fireball#s2")
	assert.Contains(t, out, "0.8123")
	assert.Contains(t, out, "Spells > Evocation > Fireball")
	assert.Contains(t, out, "phb.pdf#p241")
	assert.Contains(t, out, "rules.fireball")
	assert.Contains(t, out, "level")
	assert.Contains(t, out, "Dexterity saving throw")
}

func TestView_Scroll(t *testing.T) {
	hit := sampleHit()
	hit.Section.Text = strings.Repeat("line of rules text\n", 40)
	v := NewView(nil)
	v.SetDimensions(80, 12)
	v.SetHit(hit)

	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	assert.Equal(t, 0, v.ScrollOffset())

	for range 100 {
		v.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	assert.Equal(t, v.maxScrollOffset(), v.ScrollOffset())
	assert.Contains(t, v.View(), "[Line")

	v.SetHit(sampleHit())
	assert.Equal(t, 0, v.ScrollOffset())
}

func TestView_EscReturnsToSearch(t *testing.T) {
	v := NewView(nil)

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewSearch}, cmd())
}
