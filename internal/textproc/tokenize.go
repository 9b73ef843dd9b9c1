// Package textproc provides the tokenizer and sentence splitter shared by
// indexing, retrieval and extractive synthesis.
package textproc

import (
	"regexp"
	"strings"
)

var (
	tokenPattern    = regexp.MustCompile(`\b[a-z0-9']+\b`)
	sentencePattern = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
)

var stopwords = map[string]struct{}{
	"the": {}, "is": {}, "in": {}, "and": {}, "to": {}, "a": {}, "of": {}, "that": {}, "it": {},
	"on": {}, "for": {}, "as": {}, "with": {}, "this": {}, "was": {}, "are": {}, "but": {}, "be": {},
	"by": {}, "or": {}, "an": {}, "have": {}, "not": {}, "from": {}, "at": {},
}

// Tokenize lowercases text and returns its runs of ASCII letters, digits and
// apostrophes. Empty input yields nil.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// IsStopword reports whether tok belongs to the fixed stop-word set.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

// FilterStopwords drops stop words in place and returns the shortened slice.
func FilterStopwords(tokens []string) []string {
	out := tokens[:0]
	for _, t := range tokens {
		if IsStopword(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Terms is Tokenize followed by FilterStopwords. Indexing and querying both go
// through it so document statistics and query vectors share one vocabulary.
func Terms(text string) []string {
	return FilterStopwords(Tokenize(text))
}

// SplitSentences cuts text at sentence-terminal punctuation. Each fragment has
// its whitespace collapsed to single spaces; blank fragments are dropped.
func SplitSentences(text string) []string {
	raw := sentencePattern.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = NormalizeSpace(s)
		if strings.Trim(s, ".!? ") == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// NormalizeSpace trims s and collapses internal whitespace runs.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
