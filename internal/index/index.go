// Package index builds the TF/DF/IDF statistics over a document corpus.
package index

import (
	"math"

	"github.com/bull/lexrag/internal/textproc"
)

// Build computes term statistics for docs. The result is unversioned; the
// store assigns Version and UpdatedAt when it is saved.
//
// Ids are not checked for uniqueness: every input document is indexed on its
// own. An empty corpus yields an index with empty (non-nil) maps.
func Build(docs []Document) *Index {
	idx := &Index{
		Documents:                make([]IndexedDocument, 0, len(docs)),
		DocumentFrequency:        make(map[string]int),
		InverseDocumentFrequency: make(map[string]float64),
		CorpusSize:               len(docs),
	}

	for _, d := range docs {
		terms := textproc.Terms(d.Text + " " + d.Title)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		// one increment per distinct term, not per occurrence
		for t := range tf {
			idx.DocumentFrequency[t]++
		}
		idx.Documents = append(idx.Documents, IndexedDocument{
			ID:            d.ID,
			Title:         d.Title,
			Text:          d.Text,
			Meta:          cloneMeta(d.Meta),
			TermFrequency: tf,
			TermCount:     len(terms),
		})
	}

	for t, df := range idx.DocumentFrequency {
		idx.InverseDocumentFrequency[t] = SmoothedIDF(idx.CorpusSize, df)
	}
	return idx
}

// SmoothedIDF returns ln((n+1)/(df+1)) + 1. It is strictly positive for
// 0 <= df <= n and decreases as df grows.
func SmoothedIDF(n, df int) float64 {
	return math.Log(float64(n+1)/float64(df+1)) + 1
}

// IDF returns the stored idf for term. A nil index knows no terms.
func (idx *Index) IDF(term string) (float64, bool) {
	if idx == nil {
		return 0, false
	}
	v, ok := idx.InverseDocumentFrequency[term]
	return v, ok
}

// Size returns the corpus size, zero for a nil index.
func (idx *Index) Size() int {
	if idx == nil {
		return 0
	}
	return idx.CorpusSize
}

// SourceDocuments reconstructs the input documents in index order.
func (idx *Index) SourceDocuments() []Document {
	if idx == nil {
		return nil
	}
	docs := make([]Document, len(idx.Documents))
	for i, d := range idx.Documents {
		docs[i] = Document{ID: d.ID, Title: d.Title, Text: d.Text, Meta: cloneMeta(d.Meta)}
	}
	return docs
}

// Document returns the most recently indexed document with the given id.
func (idx *Index) Document(id string) (IndexedDocument, bool) {
	if idx == nil {
		return IndexedDocument{}, false
	}
	for i := len(idx.Documents) - 1; i >= 0; i-- {
		if idx.Documents[i].ID == id {
			return idx.Documents[i], true
		}
	}
	return IndexedDocument{}, false
}

func cloneMeta(m *Meta) *Meta {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}
