package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/unistudy/unirag/internal/config"
	"github.com/unistudy/unirag/internal/vector"
	"go.uber.org/zap"
)

// tableEmbedder maps known texts to fixed unit vectors.
type tableEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *tableEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e *tableEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func lambdaPtr(v float64) *float64 {
	return &v
}

func defaults() config.RetrievalConfig {
	return config.RetrievalConfig{K: 2, FetchPoolSize: 4, Lambda: lambdaPtr(0.6)}
}

func seedIndex(t *testing.T, records []*vector.Record) vector.Index {
	t.Helper()
	idx, err := vector.NewMemoryIndex()
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(context.Background(), records); err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestRetriever_selectsAndRanks(t *testing.T) {
	idx := seedIndex(t, []*vector.Record{
		{ID: "a.pdf:p1:c0", Source: "a.pdf", Page: 1, Text: "close match", Embedding: []float32{1, 0, 0}},
		{ID: "a.pdf:p1:c1", Source: "a.pdf", Page: 1, Text: "near duplicate", Embedding: []float32{0.995, 0.0999, 0}},
		{ID: "a.pdf:p2:c0", Source: "a.pdf", Page: 2, Text: "different angle", Embedding: []float32{0.5, 0.866, 0}},
	})
	emb := &tableEmbedder{vectors: map[string][]float32{"question": {1, 0, 0}}}
	r := NewRetriever(emb, idx, defaults(), zap.NewNop())

	res, err := r.Retrieve(context.Background(), "question", 2, 3, lambdaPtr(0.2))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(res.Chunks))
	}
	if res.Chunks[0].ID != "a.pdf:p1:c0" {
		t.Errorf("first chunk must be the best match, got %s", res.Chunks[0].ID)
	}
	if res.Chunks[1].ID != "a.pdf:p2:c0" {
		t.Errorf("second chunk must diversify away from the duplicate, got %s", res.Chunks[1].ID)
	}
	if res.Chunks[0].Rank != 1 {
		t.Errorf("rank 1 expected for the top candidate, got %d", res.Chunks[0].Rank)
	}
	if res.Chunks[1].Rank != 3 {
		t.Errorf("the diversified pick keeps its pool rank, got %d", res.Chunks[1].Rank)
	}
}

func TestRetriever_explicitLambdaZero(t *testing.T) {
	// An explicit 0 means pure diversity and must not fall back to the
	// configured default, which would keep the near duplicate.
	idx := seedIndex(t, []*vector.Record{
		{ID: "a.pdf:p1:c0", Source: "a.pdf", Page: 1, Text: "close match", Embedding: []float32{1, 0, 0}},
		{ID: "a.pdf:p1:c1", Source: "a.pdf", Page: 1, Text: "near duplicate", Embedding: []float32{0.995, 0.0999, 0}},
		{ID: "a.pdf:p2:c0", Source: "a.pdf", Page: 2, Text: "different angle", Embedding: []float32{0.5, 0.866, 0}},
	})
	emb := &tableEmbedder{vectors: map[string][]float32{"question": {1, 0, 0}}}
	cfg := config.RetrievalConfig{K: 2, FetchPoolSize: 4, Lambda: lambdaPtr(0.9)}
	r := NewRetriever(emb, idx, cfg, zap.NewNop())

	res, err := r.Retrieve(context.Background(), "question", 2, 3, lambdaPtr(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(res.Chunks))
	}
	if res.Chunks[0].ID != "a.pdf:p1:c0" {
		t.Errorf("first chunk must be the best match, got %s", res.Chunks[0].ID)
	}
	if res.Chunks[1].ID != "a.pdf:p2:c0" {
		t.Errorf("lambda 0 must pick the most diverse chunk, got %s", res.Chunks[1].ID)
	}
}

func TestRetriever_defaultsApplied(t *testing.T) {
	idx := seedIndex(t, []*vector.Record{
		{ID: "a.pdf:p1:c0", Source: "a.pdf", Page: 1, Text: "one", Embedding: []float32{1, 0, 0}},
		{ID: "a.pdf:p1:c1", Source: "a.pdf", Page: 1, Text: "two", Embedding: []float32{0, 1, 0}},
		{ID: "a.pdf:p1:c2", Source: "a.pdf", Page: 1, Text: "three", Embedding: []float32{0, 0, 1}},
	})
	r := NewRetriever(&tableEmbedder{}, idx, defaults(), zap.NewNop())

	res, err := r.Retrieve(context.Background(), "q", 0, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 2 {
		t.Errorf("default k=2 expected, got %d chunks", len(res.Chunks))
	}
}

func TestRetriever_emptyIndex(t *testing.T) {
	idx, err := vector.NewMemoryIndex()
	if err != nil {
		t.Fatal(err)
	}
	emb := &tableEmbedder{err: errors.New("should not be called")}
	r := NewRetriever(emb, idx, defaults(), zap.NewNop())

	res, err := r.Retrieve(context.Background(), "anything", 3, 10, lambdaPtr(0.5))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 0 {
		t.Errorf("empty index yields empty result, got %d", len(res.Chunks))
	}
}

func TestRetriever_kLargerThanIndex(t *testing.T) {
	idx := seedIndex(t, []*vector.Record{
		{ID: "a.pdf:p1:c0", Source: "a.pdf", Page: 1, Text: "only one", Embedding: []float32{1, 0, 0}},
	})
	r := NewRetriever(&tableEmbedder{}, idx, defaults(), zap.NewNop())

	res, err := r.Retrieve(context.Background(), "q", 5, 10, lambdaPtr(0.5))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 1 {
		t.Errorf("cannot return more than the index holds, got %d", len(res.Chunks))
	}
}

func TestRetriever_embedFailure(t *testing.T) {
	idx := seedIndex(t, []*vector.Record{
		{ID: "a.pdf:p1:c0", Source: "a.pdf", Page: 1, Text: "x", Embedding: []float32{1, 0, 0}},
	})
	emb := &tableEmbedder{err: errors.New("service down")}
	r := NewRetriever(emb, idx, defaults(), zap.NewNop())

	if _, err := r.Retrieve(context.Background(), "q", 2, 4, lambdaPtr(0.5)); err == nil {
		t.Fatal("embed failure must surface")
	}
}
