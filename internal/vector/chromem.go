package vector

import (
	"context"
	"fmt"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
)

const collectionName = "chunks"

// ChromemIndex implements Index on a chromem-go collection. The persistent
// variant writes each record to its own file under the index directory, so
// previously committed records survive an ungraceful shutdown.
type ChromemIndex struct {
	collection *chromem.Collection
}

// NewPersistentIndex opens (or creates) an index persisted under dir.
func NewPersistentIndex(dir string) (*ChromemIndex, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	return newIndex(db)
}

// NewMemoryIndex returns an unpersisted index, used in tests.
func NewMemoryIndex() (*ChromemIndex, error) {
	return newIndex(chromem.NewDB())
}

func newIndex(db *chromem.DB) (*ChromemIndex, error) {
	// Embeddings are always supplied by the caller, so no embedding
	// function is configured on the collection.
	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("open vector collection: %w", err)
	}
	return &ChromemIndex{collection: collection}, nil
}

// Add inserts records; an existing ID is overwritten.
func (x *ChromemIndex) Add(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	metadatas := make([]map[string]string, len(records))
	contents := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		embeddings[i] = rec.Embedding
		contents[i] = rec.Text
		metadatas[i] = map[string]string{
			"source": rec.Source,
			"page":   strconv.Itoa(rec.Page),
			"chunk":  strconv.Itoa(rec.Index),
		}
	}
	if err := x.collection.Add(ctx, ids, embeddings, metadatas, contents); err != nil {
		return fmt.Errorf("add vector records: %w", err)
	}
	return nil
}

// Query returns up to k records by similarity to embedding, best first.
func (x *ChromemIndex) Query(ctx context.Context, embedding []float32, k int) ([]*Result, error) {
	if k <= 0 {
		return nil, nil
	}
	if n := x.collection.Count(); n < k {
		k = n
	}
	if k == 0 {
		return nil, nil
	}
	hits, err := x.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	results := make([]*Result, len(hits))
	for i, hit := range hits {
		page, _ := strconv.Atoi(hit.Metadata["page"])
		idx, _ := strconv.Atoi(hit.Metadata["chunk"])
		results[i] = &Result{
			Record: Record{
				ID:        hit.ID,
				Source:    hit.Metadata["source"],
				Page:      page,
				Index:     idx,
				Text:      hit.Content,
				Embedding: hit.Embedding,
			},
			Similarity: float64(hit.Similarity),
		}
	}
	return results, nil
}

// DeleteSource removes every record ingested from the named source document.
func (x *ChromemIndex) DeleteSource(ctx context.Context, source string) error {
	if x.collection.Count() == 0 {
		return nil
	}
	if err := x.collection.Delete(ctx, map[string]string{"source": source}, nil); err != nil {
		return fmt.Errorf("delete source records: %w", err)
	}
	return nil
}

// Count returns the number of indexed records.
func (x *ChromemIndex) Count() int {
	return x.collection.Count()
}
