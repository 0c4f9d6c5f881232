package textproc

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lowercase, stemmed, non-stopword terms.
// Repeated terms are kept so callers can count frequencies.
// Single characters are dropped unless they are digits.
func Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 2 && !isDigits(w) {
			continue
		}
		if stopwords[w] {
			continue
		}
		tokens = append(tokens, Stem(w))
	}
	return tokens
}

// Words splits text into lowercase, stemmed words. Unlike Tokenize it keeps
// stopwords and single letters, so phrases such as "my ac" still match.
func Words(text string) []string {
	words := splitWords(text)
	for i, w := range words {
		words[i] = Stem(w)
	}
	return words
}

func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Unique returns terms with duplicates removed, first occurrence wins.
func Unique(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Stem strips plural suffixes. It is deliberately light: "spells" and
// "spell" collide, "grappling" and "grapple" do not.
func Stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") &&
		!strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us"):
		return w[:len(w)-1]
	}
	return w
}

func isDigits(w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
