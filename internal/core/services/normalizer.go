package services

import (
	"regexp"
	"sort"
	"strings"
)

// QueryNormalizer replaces known entity names with placeholders so routing
// records generalise across entities ("cast Fireball" -> "cast {spell}").
// Matching is case-insensitive on whole words; longer names win.
type QueryNormalizer struct {
	patterns []entityPattern
}

type entityPattern struct {
	re          *regexp.Regexp
	placeholder string
}

// NewQueryNormalizer compiles the entity table. Blank entries are skipped.
func NewQueryNormalizer(entities map[string]string) *QueryNormalizer {
	names := make([]string, 0, len(entities))
	for name := range entities {
		if strings.TrimSpace(name) != "" && entities[name] != "" {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	n := &QueryNormalizer{patterns: make([]entityPattern, 0, len(names))}
	for _, name := range names {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(strings.TrimSpace(name)) + `\b`)
		n.patterns = append(n.patterns, entityPattern{re: re, placeholder: entities[name]})
	}
	return n
}

// Normalize returns text with entity names replaced.
func (n *QueryNormalizer) Normalize(text string) string {
	if n == nil {
		return text
	}
	for _, p := range n.patterns {
		text = p.re.ReplaceAllLiteralString(text, p.placeholder)
	}
	return text
}

// Len returns the number of entities known.
func (n *QueryNormalizer) Len() int {
	if n == nil {
		return 0
	}
	return len(n.patterns)
}
