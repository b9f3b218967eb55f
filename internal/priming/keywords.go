// Package priming implements context prioritization for worker dispatch:
// keyword extraction, complexity tiering, multi-factor relevance scoring and
// the parallel PrimeContext fan-out.
package priming

import "strings"

// keywordCap bounds extracted keywords per text.
const keywordCap = 10

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "are": true, "was": true, "were": true,
	"will": true, "should": true, "must": true, "can": true, "could": true,
	"have": true, "has": true, "had": true, "not": true, "but": true,
	"all": true, "any": true, "its": true, "into": true, "out": true,
	"when": true, "then": true, "than": true, "them": true, "they": true,
	"been": true, "being": true, "each": true, "which": true, "what": true,
	"where": true, "who": true, "how": true, "why": true, "also": true,
	"such": true, "via": true, "per": true, "using": true, "use": true,
	"used": true, "new": true, "add": true, "get": true, "set": true,
}

// ExtractKeywords lowercases, strips punctuation, splits on whitespace,
// drops stop-words and tokens of two characters or fewer, caps the result
// at ten keywords and preserves order of first appearance.
func ExtractKeywords(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, text)

	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) <= 2 || stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
		if len(out) == keywordCap {
			break
		}
	}
	return out
}

// matchCount returns how many keywords appear in the lowered haystack.
func matchCount(haystack string, keywords []string) int {
	lowered := strings.ToLower(haystack)
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			n++
		}
	}
	return n
}
