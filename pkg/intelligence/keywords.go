// Package intelligence provides the text heuristics behind the adaptive memory:
// keyword extraction, similarity, importance scoring, sentiment and emotion
// detection, and exponential retention decay.
package intelligence

import (
	"sort"
	"strings"
	"unicode"
)

// MaxPatternKeywords is the number of keywords that make up a pattern key.
const MaxPatternKeywords = 5

// minKeywordLength drops short tokens such as "a" or "is" that survive the
// stopword list.
const minKeywordLength = 3

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {},
	"your": {}, "yours": {}, "all": {}, "any": {}, "can": {}, "could": {}, "had": {},
	"has": {}, "have": {}, "her": {}, "his": {}, "him": {}, "how": {}, "its": {},
	"may": {}, "might": {}, "our": {}, "out": {}, "she": {}, "should": {}, "that": {},
	"their": {}, "them": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "those": {}, "was": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "while": {}, "who": {}, "whom": {}, "why": {},
	"will": {}, "with": {}, "would": {}, "about": {}, "from": {}, "into": {},
	"just": {}, "like": {}, "more": {}, "some": {}, "such": {}, "than": {},
	"too": {}, "very": {}, "also": {}, "been": {}, "being": {}, "does": {},
	"did": {}, "doing": {}, "here": {}, "myself": {}, "yourself": {}, "over": {},
	"please": {}, "want": {}, "know": {}, "tell": {}, "get": {}, "got": {},
	"let": {}, "lets": {}, "really": {}, "okay": {}, "yes": {}, "yeah": {},
	"hey": {}, "hello": {}, "one": {}, "only": {}, "own": {}, "same": {},
	"each": {}, "few": {}, "most": {}, "other": {}, "nor": {}, "off": {},
	"once": {}, "again": {}, "further": {}, "because": {}, "until": {},
	"against": {}, "between": {}, "through": {}, "during": {}, "before": {},
	"after": {}, "above": {}, "below": {}, "under": {}, "both": {}, "now": {},
	"im": {}, "ive": {}, "dont": {}, "cant": {}, "youre": {}, "thats": {},
}

// Tokenize lowercases text and splits it into words, dropping punctuation.
// Apostrophes are removed so "don't" becomes "dont".
func Tokenize(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "'", "")
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ExtractKeywords returns up to limit distinct non-stopword keywords in order of
// first appearance. A limit <= 0 returns every keyword.
func ExtractKeywords(text string, limit int) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, tok := range Tokenize(text) {
		if len([]rune(tok)) < minKeywordLength {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
		if limit > 0 && len(keywords) == limit {
			break
		}
	}
	return keywords
}

// KeywordSet returns every keyword of text as a set.
func KeywordSet(text string) map[string]struct{} {
	kws := ExtractKeywords(text, 0)
	set := make(map[string]struct{}, len(kws))
	for _, kw := range kws {
		set[kw] = struct{}{}
	}
	return set
}

// PatternKey builds the pattern key of a query: up to MaxPatternKeywords
// keywords, sorted and joined by a space. It returns "" when the query has no
// keywords.
func PatternKey(query string) string {
	kws := ExtractKeywords(query, MaxPatternKeywords)
	if len(kws) == 0 {
		return ""
	}
	sort.Strings(kws)
	return strings.Join(kws, " ")
}

// PatternKeySet splits a pattern key back into its keyword set.
func PatternKeySet(key string) map[string]struct{} {
	fields := strings.Fields(key)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// ContainsAny reports whether any of words occurs in text as a whole token.
// Multi-word entries are matched as substrings of the lowercased text.
func ContainsAny(text string, words []string) bool {
	return len(MatchedWords(text, words)) > 0
}

// MatchedWords returns the entries of words found in text.
func MatchedWords(text string, words []string) []string {
	lower := strings.ToLower(text)
	tokens := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		tokens[tok] = struct{}{}
	}

	var matched []string
	for _, w := range words {
		if strings.Contains(w, " ") {
			if strings.Contains(lower, w) {
				matched = append(matched, w)
			}
			continue
		}
		if _, ok := tokens[w]; ok {
			matched = append(matched, w)
		}
	}
	return matched
}
