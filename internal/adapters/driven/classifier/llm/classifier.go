// Package llm provides a query classifier that asks a remote LLM for
// per-category confidences.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Ensure Classifier implements the interfaces.
var (
	_ driven.Classifier       = (*Classifier)(nil)
	_ driven.PromptStoreAware = (*Classifier)(nil)
)

// Name is the classifier name recorded in routing decisions.
const Name = "llm"

// DefaultSystemPrompt is used when no prompt store is configured.
const DefaultSystemPrompt = `You route questions for a tabletop role-playing assistant to the knowledge sources that can answer them.
Reply with a single JSON object mapping every category name to a confidence between 0 and 1.
A question may need more than one category. Do not add any other text.`

// DefaultClassifyPrompt is used when no prompt store is configured.
// It takes the category list and the question.
const DefaultClassifyPrompt = `Categories:
%s

Question: %s

JSON:`

// Classifier is the remote LLM classifier.
type Classifier struct {
	llm         driven.LLMService
	profiles    map[domain.Category]domain.CategoryProfile
	promptStore driven.PromptStore
}

// New creates an LLM classifier.
func New(llm driven.LLMService, profiles []domain.CategoryProfile) *Classifier {
	byCat := make(map[domain.Category]domain.CategoryProfile, len(profiles))
	for _, p := range profiles {
		byCat[p.Category] = p
	}
	return &Classifier{llm: llm, profiles: byCat}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (c *Classifier) SetPromptStore(store driven.PromptStore) {
	c.promptStore = store
}

// Name identifies the classifier.
func (c *Classifier) Name() string {
	return Name
}

// Classify returns a confidence for every requested category. Categories the
// model leaves out score zero.
func (c *Classifier) Classify(ctx context.Context, query domain.Query, categories []domain.Category) ([]domain.ScopeScore, error) {
	if c.llm == nil {
		return nil, domain.NewClassificationUnavailable(Name, domain.ErrLLMUnavailable)
	}

	prompt := fmt.Sprintf(c.loadPrompt(driven.PromptRouteClassify, DefaultClassifyPrompt),
		c.describe(categories), query.ClassificationText())
	messages := []driven.ChatMessage{
		{Role: "system", Content: c.loadPrompt(driven.PromptRouteSystem, DefaultSystemPrompt)},
		{Role: "user", Content: prompt},
	}

	reply, err := c.llm.Chat(ctx, messages, driven.ChatOptions{MaxTokens: 200, JSON: true})
	if err != nil {
		return nil, domain.NewClassificationUnavailable(Name, err)
	}

	raw, err := parseConfidences(reply)
	if err != nil {
		return nil, domain.NewClassificationUnavailable(Name, err)
	}

	scores := make([]domain.ScopeScore, 0, len(categories))
	for _, cat := range categories {
		scores = append(scores, domain.ScopeScore{Category: cat, Confidence: raw[strings.ToLower(string(cat))]})
	}
	return scores, nil
}

func (c *Classifier) describe(categories []domain.Category) string {
	var b strings.Builder
	for _, cat := range categories {
		b.WriteString("- ")
		b.WriteString(string(cat))
		if p, ok := c.profiles[cat]; ok && p.Description != "" {
			b.WriteString(": ")
			b.WriteString(p.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Classifier) loadPrompt(name, fallback string) string {
	if c.promptStore == nil {
		return fallback
	}
	prompt, err := c.promptStore.Load(name)
	if err != nil || prompt == "" {
		return fallback
	}
	return prompt
}

// parseConfidences reads the first JSON object in reply. Models sometimes
// wrap the object in prose or code fences.
func parseConfidences(reply string) (map[string]float64, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in reply %q", truncate(reply, 80))
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}

	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		switch n := v.(type) {
		case float64:
			out[key] = n
		case string:
			var f float64
			if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
				out[key] = f
			}
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
