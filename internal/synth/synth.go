// Package synth builds an extractive answer from retrieved documents by
// picking the sentences that best match the query under BM25.
package synth

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bull/lexrag/internal/retriever"
	"github.com/bull/lexrag/internal/textproc"
)

const (
	NoDocumentsMarker = "No relevant documents found."
	TruncationMarker  = "..."
)

// Options tunes sentence selection. Zero fields take the DefaultOptions value.
type Options struct {
	MaxDocuments      int
	MaxSentences      int
	MinSentenceChars  int
	K1                float64
	B                 float64
	MaxAnswerChars    int
	FallbackDocuments int
}

// DefaultOptions returns the standard BM25 parameters and answer bounds.
func DefaultOptions() Options {
	return Options{
		MaxDocuments:      6,
		MaxSentences:      6,
		MinSentenceChars:  8,
		K1:                1.2,
		B:                 0.75,
		MaxAnswerChars:    2000,
		FallbackDocuments: 3,
	}
}

// Stats exposes the corpus statistics the scorer needs. *index.Index
// satisfies it.
type Stats interface {
	IDF(term string) (float64, bool)
	Size() int
}

// Synthesizer assembles extractive answers.
type Synthesizer struct {
	opts Options
}

// New returns a Synthesizer with opts merged over the defaults.
func New(opts Options) *Synthesizer {
	d := DefaultOptions()
	if opts.MaxDocuments > 0 {
		d.MaxDocuments = opts.MaxDocuments
	}
	if opts.MaxSentences > 0 {
		d.MaxSentences = opts.MaxSentences
	}
	if opts.MinSentenceChars > 0 {
		d.MinSentenceChars = opts.MinSentenceChars
	}
	if opts.K1 > 0 {
		d.K1 = opts.K1
	}
	if opts.B > 0 {
		d.B = opts.B
	}
	if opts.MaxAnswerChars > len(TruncationMarker) {
		d.MaxAnswerChars = opts.MaxAnswerChars
	}
	if opts.FallbackDocuments > 0 {
		d.FallbackDocuments = opts.FallbackDocuments
	}
	return &Synthesizer{opts: d}
}

type candidate struct {
	doc    int
	text   string
	tokens []string
	score  float64
}

// Synthesize answers query from docs, which must be ordered best first.
func (s *Synthesizer) Synthesize(query string, docs []retriever.ScoredDocument, stats Stats) string {
	if len(docs) == 0 {
		return NoDocumentsMarker
	}
	if stats == nil {
		stats = noStats{}
	}
	if len(docs) > s.opts.MaxDocuments {
		docs = docs[:s.opts.MaxDocuments]
	}

	var candidates []candidate
	totalTokens := 0
	for i, d := range docs {
		for _, sentence := range textproc.SplitSentences(d.Text) {
			if utf8.RuneCountInString(sentence) < s.opts.MinSentenceChars {
				continue
			}
			tokens := textproc.Terms(sentence)
			totalTokens += len(tokens)
			candidates = append(candidates, candidate{doc: i, text: sentence, tokens: tokens})
		}
	}

	avgLen := 1.0
	if len(candidates) > 0 && totalTokens > 0 {
		avgLen = float64(totalTokens) / float64(len(candidates))
	}

	queryTerms := distinct(textproc.Terms(query))
	fallbackIDF := math.Log(float64(stats.Size()) + 1)

	selected := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		c.score = s.bm25(queryTerms, c.tokens, avgLen, stats, fallbackIDF)
		if c.score > 0 {
			selected = append(selected, c)
		}
	}

	if len(selected) == 0 {
		return s.truncate(s.fallback(docs))
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].score > selected[j].score
	})
	if len(selected) > s.opts.MaxSentences {
		selected = selected[:s.opts.MaxSentences]
	}

	// group by source document in selection order
	var order []int
	groups := map[int][]string{}
	for _, c := range selected {
		if _, ok := groups[c.doc]; !ok {
			order = append(order, c.doc)
		}
		groups[c.doc] = append(groups[c.doc], c.text)
	}
	parts := make([]string, len(order))
	for i, doc := range order {
		parts[i] = strings.Join(groups[doc], " ")
	}
	return s.truncate(strings.Join(parts, "\n\n"))
}

func (s *Synthesizer) bm25(queryTerms, tokens []string, avgLen float64, stats Stats, fallbackIDF float64) float64 {
	if len(tokens) == 0 {
		return 0
	}
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}

	k1, b := s.opts.K1, s.opts.B
	norm := 1 - b + b*(float64(len(tokens))/avgLen)

	var score float64
	for _, t := range queryTerms {
		n := tf[t]
		if n == 0 {
			continue
		}
		idf, ok := stats.IDF(t)
		if !ok {
			idf = fallbackIDF
		}
		f := float64(n)
		score += idf * (f * (k1 + 1)) / (f + k1*norm)
	}
	return score
}

func (s *Synthesizer) fallback(docs []retriever.ScoredDocument) string {
	n := s.opts.FallbackDocuments
	if len(docs) < n {
		n = len(docs)
	}
	parts := make([]string, 0, n)
	for _, d := range docs[:n] {
		part := strings.TrimSpace(d.Title + "\n" + d.Text)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n\n")
}

// truncate bounds answer to MaxAnswerChars runes including the marker.
func (s *Synthesizer) truncate(answer string) string {
	if utf8.RuneCountInString(answer) <= s.opts.MaxAnswerChars {
		return answer
	}
	runes := []rune(answer)
	keep := s.opts.MaxAnswerChars - utf8.RuneCountInString(TruncationMarker)
	return strings.TrimRightFunc(string(runes[:keep]), isSpace) + TruncationMarker
}

type noStats struct{}

func (noStats) IDF(string) (float64, bool) { return 0, false }
func (noStats) Size() int                  { return 0 }

func isSpace(r rune) bool { return r == ' ' || r == '\n' || r == '\t' }

func distinct(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
