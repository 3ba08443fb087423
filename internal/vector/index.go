// Package vector provides the persisted vector index for chunk embeddings.
package vector

import (
	"context"
	"math"
)

// Record is one indexed chunk with its embedding.
type Record struct {
	ID        string
	Source    string
	Page      int
	Index     int
	Text      string
	Embedding []float32
}

// Result is a query hit: the record plus its similarity to the query.
// Embeddings are carried along because diversity selection needs
// candidate-to-candidate similarities.
type Result struct {
	Record
	Similarity float64
}

// Index stores chunk vectors and serves similarity queries. Adding a record
// with an existing ID overwrites it. Implementations must be safe for
// concurrent indexing and querying.
type Index interface {
	Add(ctx context.Context, records []*Record) error
	Query(ctx context.Context, embedding []float32, k int) ([]*Result, error)
	DeleteSource(ctx context.Context, source string) error
	Count() int
}

// CosineSimilarity returns the cosine similarity of two normalized vectors,
// clamped to [0, 1].
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return math.Max(0, math.Min(1, dot))
}
