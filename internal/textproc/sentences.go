package textproc

import (
	"strings"
	"unicode"
)

// SplitSentences cuts text after '.', '!' or '?' when followed by whitespace.
// Whitespace between sentences is dropped; empty sentences are skipped.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentences = appendSentence(sentences, runes[start:i+1])
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	return appendSentence(sentences, runes[start:])
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func appendSentence(out []string, rs []rune) []string {
	if s := strings.TrimSpace(string(rs)); s != "" {
		out = append(out, s)
	}
	return out
}
