package keyword

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

var allCategories = []domain.Category{domain.CategoryCharacter, domain.CategoryRules, domain.CategorySession}

func confidences(t *testing.T, text string) map[domain.Category]float64 {
	t.Helper()
	c := New(domain.DefaultCategoryProfiles())
	scores, err := c.Classify(context.Background(), domain.Query{RawText: text}, allCategories)
	require.NoError(t, err)
	require.Len(t, scores, len(allCategories))

	out := make(map[domain.Category]float64, len(scores))
	for _, s := range scores {
		out[s.Category] = s.Confidence
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  map[domain.Category]float64
	}{
		{
			name:  "character stats",
			query: "What is my strength modifier?",
			want:  map[domain.Category]float64{domain.CategoryCharacter: 0.875, domain.CategoryRules: 0, domain.CategorySession: 0},
		},
		{
			name:  "rules",
			query: "How does grapple work?",
			want:  map[domain.Category]float64{domain.CategoryCharacter: 0, domain.CategoryRules: 0.5, domain.CategorySession: 0},
		},
		{
			name:  "phrase keyword",
			query: "How many hit points do I have",
			want:  map[domain.Category]float64{domain.CategoryCharacter: 0.5, domain.CategoryRules: 0, domain.CategorySession: 0},
		},
		{
			name:  "spans character and rules",
			query: "what's my attack bonus with this weapon",
			want:  map[domain.Category]float64{domain.CategoryCharacter: 0.875, domain.CategoryRules: 0.5, domain.CategorySession: 0},
		},
		{
			name:  "nothing matches",
			query: "tell me a joke",
			want:  map[domain.Category]float64{domain.CategoryCharacter: 0, domain.CategoryRules: 0, domain.CategorySession: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := confidences(t, tt.query)
			for cat, want := range tt.want {
				assert.InDelta(t, want, got[cat], 1e-12, "category %s", cat)
			}
		})
	}
}

func TestClassify_UsesNormalizedText(t *testing.T) {
	c := New([]domain.CategoryProfile{{Category: "spells", Keywords: []string{"{spell}", "cast"}}})
	scores, err := c.Classify(context.Background(),
		domain.Query{RawText: "Can I cast Fireball?", NormalizedText: "Can I cast {spell}?"},
		[]domain.Category{"spells"})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, scores[0].Confidence, 1e-12)
}

func TestNew_DeduplicatesEquivalentKeywords(t *testing.T) {
	c := New([]domain.CategoryProfile{{
		Category: "loot",
		Keywords: []string{"Hit Points", "hit-points", "hit  points", "gold"},
	}})
	scores, err := c.Classify(context.Background(), domain.Query{RawText: "how many hit points"}, []domain.Category{"loot"})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, scores[0].Confidence, 1e-12)
}

func TestClassify_UnknownCategoryScoresZero(t *testing.T) {
	c := New(domain.DefaultCategoryProfiles())
	scores, err := c.Classify(context.Background(), domain.Query{RawText: "monsters"}, []domain.Category{"monster"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, scores[0].Confidence)
}

func TestClassify_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Classify(ctx, domain.Query{RawText: "x"}, allCategories)
	assert.True(t, errors.Is(err, domain.ErrClassificationUnavailable))
	assert.Equal(t, Name, New(nil).Name())
}
