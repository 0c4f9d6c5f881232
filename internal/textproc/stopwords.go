package textproc

// stopwords contains common English words excluded from indexing.
var stopwords = map[string]bool{
	"a": true, "about": true, "after": true, "all": true, "also": true,
	"am": true, "an": true, "and": true, "any": true, "are": true,
	"as": true, "at": true, "be": true, "been": true, "being": true,
	"but": true, "by": true, "can": true, "could": true, "did": true,
	"do": true, "does": true, "for": true, "from": true, "had": true,
	"has": true, "have": true, "he": true, "her": true, "him": true,
	"his": true, "how": true, "i": true, "if": true, "in": true,
	"into": true, "is": true, "it": true, "its": true, "me": true,
	"my": true, "of": true, "on": true, "or": true, "our": true,
	"out": true, "she": true, "should": true, "so": true, "than": true,
	"that": true, "the": true, "their": true, "them": true, "then": true,
	"they": true, "this": true, "to": true, "up": true, "us": true,
	"was": true, "we": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "why": true, "will": true,
	"with": true, "would": true, "you": true, "your": true,
}

// IsStopword reports whether a lowercase word is ignored by the analyser.
func IsStopword(w string) bool {
	return stopwords[w]
}
