package synth

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/lexrag/internal/index"
	"github.com/bull/lexrag/internal/retriever"
	"github.com/bull/lexrag/internal/textproc"
)

func colorsAndFruits() *index.Index {
	return index.Build([]index.Document{
		{ID: "1", Title: "Colors", Text: "Red blue and green are common colors. Red is warm."},
		{ID: "2", Title: "Fruits", Text: "Apples and oranges are fruits. Apples can be red or green."},
	})
}

func TestSynthesize_NoDocuments(t *testing.T) {
	s := New(Options{})
	assert.Equal(t, NoDocumentsMarker, s.Synthesize("red", nil, nil))
}

func TestSynthesize_RedApples(t *testing.T) {
	idx := colorsAndFruits()
	docs := retriever.Rank(idx, "red apples", 5)
	require.NotEmpty(t, docs)

	answer := New(Options{}).Synthesize("red apples", docs, idx)

	assert.NotEmpty(t, answer)
	assert.True(t, strings.Contains(answer, "Apples") || strings.Contains(answer, "red"), answer)
	assert.LessOrEqual(t, utf8.RuneCountInString(answer), 2000)
	// fruits document ranks first, so its sentences lead the answer
	assert.True(t, strings.HasPrefix(answer, "Apples"), answer)
	assert.Contains(t, answer, "\n\n")
}

func TestSynthesize_SkipsShortSentences(t *testing.T) {
	idx := index.Build([]index.Document{
		{ID: "1", Title: "Short", Text: "Red. Red ok! Red apples are crisp and sweet."},
	})
	docs := retriever.Rank(idx, "red", 5)

	answer := New(Options{}).Synthesize("red", docs, idx)

	assert.Equal(t, "Red apples are crisp and sweet.", answer)
	for _, sentence := range textproc.SplitSentences(answer) {
		assert.GreaterOrEqual(t, utf8.RuneCountInString(sentence), 8)
	}
}

func TestSynthesize_FallsBackToTopDocuments(t *testing.T) {
	docs := []retriever.ScoredDocument{
		{ID: "1", Title: "One", Text: "First body.", Score: 0.9},
		{ID: "2", Title: "Two", Text: "Second body.", Score: 0.8},
		{ID: "3", Title: "Three", Text: "Third body.", Score: 0.7},
		{ID: "4", Title: "Four", Text: "Fourth body.", Score: 0.6},
	}

	answer := New(Options{}).Synthesize("zebra", docs, index.Build(nil))

	assert.Equal(t, "One\nFirst body.\n\nTwo\nSecond body.\n\nThree\nThird body.", answer)
	assert.NotContains(t, answer, "Four")
}

func TestSynthesize_LimitsSentenceCount(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString("The lantern sentence number is here. ")
	}
	idx := index.Build([]index.Document{{ID: "1", Title: "Lanterns", Text: b.String()}})
	docs := retriever.Rank(idx, "lantern", 5)

	answer := New(Options{}).Synthesize("lantern", docs, idx)

	assert.Equal(t, 6, strings.Count(answer, "lantern"))
}

func TestSynthesize_TruncatesLongAnswers(t *testing.T) {
	sentence := "Lantern " + strings.Repeat("glow ", 100) + "end."
	text := strings.Repeat(sentence+" ", 6)
	idx := index.Build([]index.Document{{ID: "1", Title: "Long", Text: text}})
	docs := retriever.Rank(idx, "lantern", 5)

	answer := New(Options{}).Synthesize("lantern", docs, idx)

	assert.LessOrEqual(t, utf8.RuneCountInString(answer), 2000)
	assert.True(t, strings.HasSuffix(answer, TruncationMarker))
}

func TestSynthesize_UnknownTermUsesFallbackIDF(t *testing.T) {
	docs := []retriever.ScoredDocument{{ID: "1", Title: "X", Text: "Zebras roam the open plains.", Score: 1}}
	// the index knows nothing about "zebras" but has two documents
	stats := index.Build([]index.Document{{ID: "a", Text: "one"}, {ID: "b", Text: "two"}})

	answer := New(Options{}).Synthesize("zebras", docs, stats)
	assert.Equal(t, "Zebras roam the open plains.", answer)
}

func TestNew_MergesDefaults(t *testing.T) {
	s := New(Options{MaxSentences: 2})
	assert.Equal(t, 2, s.opts.MaxSentences)
	assert.Equal(t, 6, s.opts.MaxDocuments)
	assert.Equal(t, 1.2, s.opts.K1)
	assert.Equal(t, 2000, s.opts.MaxAnswerChars)
}
