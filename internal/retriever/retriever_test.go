package retriever

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/lexrag/internal/index"
	"github.com/bull/lexrag/internal/storage"
)

type staticLoader struct {
	idx *index.Index
	err error
}

func (l staticLoader) Load(context.Context) (*index.Index, error) { return l.idx, l.err }

func colorsAndFruits() *index.Index {
	return index.Build([]index.Document{
		{ID: "1", Title: "Colors", Text: "Red blue and green are common colors. Red is warm."},
		{ID: "2", Title: "Fruits", Text: "Apples and oranges are fruits. Apples can be red or green."},
	})
}

func TestRank_RedApples(t *testing.T) {
	results := Rank(colorsAndFruits(), "red apples", 5)

	require.Len(t, results, 2)
	assert.Equal(t, "2", results[0].ID)
	assert.Equal(t, "Fruits", results[0].Title)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestRank_DegenerateQueries(t *testing.T) {
	idx := colorsAndFruits()

	tests := []struct {
		name  string
		query string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"stop words only", "the of and"},
		{"unknown term", "zebra"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := Rank(idx, tt.query, 5)
			assert.NotNil(t, results)
			assert.Empty(t, results)
		})
	}
}

func TestRank_RespectsTopKAndOrdering(t *testing.T) {
	docs := make([]index.Document, 20)
	for i := range docs {
		text := "filler words here"
		for j := 0; j <= i%5; j++ {
			text += " lantern"
		}
		docs[i] = index.Document{ID: fmt.Sprintf("d%02d", i), Text: text}
	}
	idx := index.Build(docs)

	results := Rank(idx, "lantern", 7)
	require.Len(t, results, 7)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		assert.Greater(t, results[i].Score, 0.0)
	}
}

func TestRank_TiesKeepIndexOrder(t *testing.T) {
	idx := index.Build([]index.Document{
		{ID: "a", Text: "same words"},
		{ID: "b", Text: "same words"},
		{ID: "c", Text: "same words"},
	})

	results := Rank(idx, "same", 3)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{results[0].ID, results[1].ID, results[2].ID})
}

func TestRank_NilIndex(t *testing.T) {
	assert.Empty(t, Rank(nil, "red", 5))
}

func TestScore_ZeroNorms(t *testing.T) {
	idx := colorsAndFruits()
	assert.Equal(t, 0.0, Score(map[string]int{}, map[string]int{"red": 1}, idx))
	assert.Equal(t, 0.0, Score(map[string]int{"red": 1}, map[string]int{}, idx))
}

func TestScore_IdenticalVectorsIsOne(t *testing.T) {
	idx := colorsAndFruits()
	tf := map[string]int{"red": 2, "apples": 1}
	assert.InDelta(t, 1.0, Score(tf, tf, idx), 1e-12)
}

func TestSearch_MissingIndexIsEmpty(t *testing.T) {
	r := New(staticLoader{err: storage.ErrIndexNotFound})

	results, idx, err := r.Search(context.Background(), "red", 5)
	require.NoError(t, err)
	assert.Nil(t, idx)
	assert.Empty(t, results)
}

func TestSearch_PropagatesLoadErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	r := New(staticLoader{err: boom})

	_, _, err := r.Search(context.Background(), "red", 5)
	assert.ErrorIs(t, err, boom)
}

func TestSearch_ClampsTopK(t *testing.T) {
	r := New(staticLoader{idx: colorsAndFruits()}, WithTopK(1, 3))

	assert.Equal(t, 1, r.ClampTopK(0))
	assert.Equal(t, 1, r.ClampTopK(-4))
	assert.Equal(t, 3, r.ClampTopK(100))
	assert.Equal(t, 2, r.ClampTopK(2))

	results, idx, err := r.Search(context.Background(), "red apples", 0)
	require.NoError(t, err)
	assert.NotNil(t, idx)
	assert.Len(t, results, 1)
}
