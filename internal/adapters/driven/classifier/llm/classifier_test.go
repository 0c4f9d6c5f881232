package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// mockLLM records the last chat and returns a canned reply.
type mockLLM struct {
	reply    string
	err      error
	messages []driven.ChatMessage
	opts     driven.ChatOptions
}

func (m *mockLLM) Generate(_ context.Context, _ string, _ driven.GenerateOptions) (string, error) {
	return m.reply, m.err
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.messages = messages
	m.opts = opts
	return m.reply, m.err
}

func (m *mockLLM) ModelName() string { return "mock" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error { return nil }

// mapPrompts serves prompts from a map.
type mapPrompts map[string]string

func (p mapPrompts) Load(name string) (string, error) {
	if v, ok := p[name]; ok {
		return v, nil
	}
	return "", errors.New("missing")
}

func (p mapPrompts) Reload() {}

var cats = []domain.Category{domain.CategoryCharacter, domain.CategoryRules, domain.CategorySession}

func TestClassify(t *testing.T) {
	m := &mockLLM{reply: "Sure!\n```json\n{\"Rules\": 0.8, \"character\": \"0.6\", \"spells\": 1}\n```"}
	c := New(m, domain.DefaultCategoryProfiles())

	scores, err := c.Classify(context.Background(),
		domain.Query{RawText: "attack with Longsword", NormalizedText: "attack with {weapon}"}, cats)
	require.NoError(t, err)

	assert.Equal(t, []domain.ScopeScore{
		{Category: domain.CategoryCharacter, Confidence: 0.6},
		{Category: domain.CategoryRules, Confidence: 0.8},
		{Category: domain.CategorySession, Confidence: 0},
	}, scores)

	require.Len(t, m.messages, 2)
	assert.Equal(t, "system", m.messages[0].Role)
	assert.Contains(t, m.messages[1].Content, "attack with {weapon}")
	assert.Contains(t, m.messages[1].Content, "- rules: Rulebook sections")
	assert.True(t, m.opts.JSON)
}

func TestClassify_PromptStore(t *testing.T) {
	m := &mockLLM{reply: `{"rules": 1}`}
	c := New(m, nil)
	c.SetPromptStore(mapPrompts{driven.PromptRouteClassify: "CATS[%s] Q[%s]"})

	_, err := c.Classify(context.Background(), domain.Query{RawText: "q"}, []domain.Category{domain.CategoryRules})
	require.NoError(t, err)
	assert.Equal(t, "CATS[- rules] Q[q]", m.messages[1].Content)
	assert.Equal(t, DefaultSystemPrompt, m.messages[0].Content)
}

func TestClassify_Failures(t *testing.T) {
	tests := []struct {
		name string
		llm  driven.LLMService
	}{
		{"no llm", nil},
		{"llm error", &mockLLM{err: domain.ErrLLMUnavailable}},
		{"no json", &mockLLM{reply: "rules, probably"}},
		{"bad json", &mockLLM{reply: "{rules: high}"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.llm, domain.DefaultCategoryProfiles())
			_, err := c.Classify(context.Background(), domain.Query{RawText: "q"}, cats)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrClassificationUnavailable))
		})
	}
}
