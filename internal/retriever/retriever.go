// Package retriever ranks indexed documents against a query by TF-IDF cosine
// similarity.
package retriever

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/bull/lexrag/internal/index"
	"github.com/bull/lexrag/internal/storage"
	"github.com/bull/lexrag/internal/textproc"
)

const (
	DefaultTopK = 5
	MaxTopK     = 50
)

// ScoredDocument is a search hit.
type ScoredDocument struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	Text  string      `json:"text"`
	Meta  *index.Meta `json:"meta,omitempty"`
	Score float64     `json:"score"`
}

// IndexLoader provides the current index.
type IndexLoader interface {
	Load(ctx context.Context) (*index.Index, error)
}

// Retriever searches the index held by an IndexLoader.
type Retriever struct {
	loader      IndexLoader
	defaultTopK int
	maxTopK     int
	logger      *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithTopK overrides the default and maximum result counts.
func WithTopK(defaultTopK, maxTopK int) Option {
	return func(r *Retriever) {
		if defaultTopK > 0 {
			r.defaultTopK = defaultTopK
		}
		if maxTopK > 0 {
			r.maxTopK = maxTopK
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Retriever.
func New(loader IndexLoader, opts ...Option) *Retriever {
	r := &Retriever{
		loader:      loader,
		defaultTopK: DefaultTopK,
		maxTopK:     MaxTopK,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search loads the current index and ranks it against query. A missing index
// or a query with no content terms yields an empty result, not an error.
// It also returns the loaded index (nil when absent) so callers can reuse its
// statistics.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]ScoredDocument, *index.Index, error) {
	idx, err := r.loader.Load(ctx)
	if errors.Is(err, storage.ErrIndexNotFound) {
		r.logger.Debug("Search against empty index", "query", query)
		return []ScoredDocument{}, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return Rank(idx, query, r.ClampTopK(topK)), idx, nil
}

// ClampTopK maps a requested result count onto [1, max], substituting the
// default for non-positive values.
func (r *Retriever) ClampTopK(topK int) int {
	if topK <= 0 {
		topK = r.defaultTopK
	}
	if topK > r.maxTopK {
		topK = r.maxTopK
	}
	return topK
}

// Rank scores every document in idx against query and returns at most topK
// documents with positive score, highest first. Equal scores keep index order.
func Rank(idx *index.Index, query string, topK int) []ScoredDocument {
	results := []ScoredDocument{}
	if idx == nil || topK <= 0 {
		return results
	}
	terms := textproc.Terms(query)
	if len(terms) == 0 {
		return results
	}

	qtf := make(map[string]int, len(terms))
	for _, t := range terms {
		qtf[t]++
	}

	for _, d := range idx.Documents {
		score := Score(qtf, d.TermFrequency, idx)
		if score <= 0 {
			continue
		}
		results = append(results, ScoredDocument{
			ID:    d.ID,
			Title: d.Title,
			Text:  d.Text,
			Meta:  d.Meta,
			Score: score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Score returns the cosine similarity of the idf-weighted query and document
// term vectors. Terms unknown to the index weigh 1. Zero norms score 0.
func Score(qtf, dtf map[string]int, idx *index.Index) float64 {
	var dot, qnorm, dnorm float64

	weight := func(t string) float64 {
		if w, ok := idx.IDF(t); ok {
			return w
		}
		return 1
	}

	for t, qn := range qtf {
		w := weight(t)
		qv := float64(qn) * w
		dv := float64(dtf[t]) * w
		dot += qv * dv
		qnorm += qv * qv
	}
	for t, dn := range dtf {
		dv := float64(dn) * weight(t)
		dnorm += dv * dv
	}

	if qnorm == 0 || dnorm == 0 {
		return 0
	}
	return dot / (math.Sqrt(qnorm) * math.Sqrt(dnorm))
}
