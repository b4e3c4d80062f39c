package match

import (
	"regexp"
	"strings"
)

// stopWords are excluded from keyword extraction. The list deliberately
// includes marketplace vocabulary ("offer", "request", "looking") that
// appears in nearly every listing and carries no matching signal.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "from": {}, "is": {}, "are": {}, "was": {},
	"were": {}, "be": {}, "been": {}, "being": {}, "have": {},
	"has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {},
	"would": {}, "could": {}, "should": {}, "may": {}, "might": {},
	"must": {}, "shall": {}, "can": {}, "need": {}, "i": {}, "you": {},
	"he": {}, "she": {}, "it": {}, "we": {}, "they": {}, "my": {},
	"your": {}, "his": {}, "her": {}, "its": {}, "our": {},
	"their": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"am": {}, "help": {}, "looking": {}, "want": {}, "offer": {},
	"request": {},
}

var wordPattern = regexp.MustCompile(`\b[a-z]{3,}\b`)

// ExtractKeywords lowercases the text, pulls out words of three or more
// letters and drops stop words and duplicates, preserving first-seen
// order.
func ExtractKeywords(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)

	seen := make(map[string]struct{}, len(words))
	var keywords []string
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}
	return keywords
}
