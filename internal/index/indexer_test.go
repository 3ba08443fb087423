package index

import (
	"context"
	"errors"
	"testing"

	"github.com/unistudy/unirag/internal/models"
	"github.com/unistudy/unirag/internal/vector"
	"go.uber.org/zap"
)

// flakyEmbedder fails the batch call and then fails single embeds for texts
// listed in failTexts, succeeding for everything else.
type flakyEmbedder struct {
	failBatch   bool
	failTexts   map[string]int // text -> number of failures before success
	embedCalls  int
	batchCalls  int
	permanently map[string]bool
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.embedCalls++
	if f.permanently[text] {
		return nil, errors.New("embed service unavailable")
	}
	if n := f.failTexts[text]; n > 0 {
		f.failTexts[text] = n - 1
		return nil, errors.New("transient embed failure")
	}
	return []float32{1, 0, 0}, nil
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	if f.failBatch {
		return nil, errors.New("batch embed failure")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func newMemIndex(t *testing.T) vector.Index {
	t.Helper()
	idx, err := vector.NewMemoryIndex()
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestIndexer_batchPath(t *testing.T) {
	emb := &flakyEmbedder{}
	idx := newMemIndex(t)
	ix := NewIndexer(emb, idx, 2, zap.NewNop())

	chunks := []*models.Chunk{
		{ID: "a.pdf:p1:c0", Source: "a.pdf", Page: 1, Index: 0, Text: "alpha"},
		{ID: "a.pdf:p1:c1", Source: "a.pdf", Page: 1, Index: 1, Text: "beta"},
	}
	n, err := ix.Index(context.Background(), chunks)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 indexed, got %d", n)
	}
	if emb.batchCalls != 1 || emb.embedCalls != 0 {
		t.Errorf("happy path must use one batch call, got batch=%d single=%d", emb.batchCalls, emb.embedCalls)
	}
	if idx.Count() != 2 {
		t.Errorf("index holds %d records", idx.Count())
	}
}

func TestIndexer_perChunkRetryAfterBatchFailure(t *testing.T) {
	emb := &flakyEmbedder{
		failBatch: true,
		failTexts: map[string]int{"beta": 1}, // fails once, then succeeds
	}
	idx := newMemIndex(t)
	ix := NewIndexer(emb, idx, 2, zap.NewNop())

	chunks := []*models.Chunk{
		{ID: "a.pdf:p1:c0", Source: "a.pdf", Page: 1, Index: 0, Text: "alpha"},
		{ID: "a.pdf:p1:c1", Source: "a.pdf", Page: 1, Index: 1, Text: "beta"},
	}
	n, err := ix.Index(context.Background(), chunks)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("retry should recover the transient failure, indexed %d", n)
	}
}

func TestIndexer_dropsChunkAfterRetriesExhausted(t *testing.T) {
	emb := &flakyEmbedder{
		failBatch:   true,
		permanently: map[string]bool{"beta": true},
	}
	idx := newMemIndex(t)
	ix := NewIndexer(emb, idx, 1, zap.NewNop())

	chunks := []*models.Chunk{
		{ID: "a.pdf:p1:c0", Source: "a.pdf", Page: 1, Index: 0, Text: "alpha"},
		{ID: "a.pdf:p1:c1", Source: "a.pdf", Page: 1, Index: 1, Text: "beta"},
	}
	n, err := ix.Index(context.Background(), chunks)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("the failing chunk must be dropped, indexed %d", n)
	}
	if idx.Count() != 1 {
		t.Errorf("index holds %d records", idx.Count())
	}
}

func TestIndexer_allChunksFailedIsError(t *testing.T) {
	emb := &flakyEmbedder{
		failBatch:   true,
		permanently: map[string]bool{"alpha": true},
	}
	ix := NewIndexer(emb, newMemIndex(t), 0, zap.NewNop())

	_, err := ix.Index(context.Background(), []*models.Chunk{
		{ID: "a.pdf:p1:c0", Source: "a.pdf", Page: 1, Index: 0, Text: "alpha"},
	})
	if err == nil {
		t.Fatal("expected an error when nothing could be embedded")
	}
}

func TestIndexer_indexDocumentReplacesSource(t *testing.T) {
	emb := &flakyEmbedder{}
	idx := newMemIndex(t)
	ix := NewIndexer(emb, idx, 2, zap.NewNop())
	ctx := context.Background()

	first := []*models.Chunk{
		{ID: "a.pdf:p1:c0", Source: "a.pdf", Page: 1, Index: 0, Text: "old one"},
		{ID: "a.pdf:p1:c1", Source: "a.pdf", Page: 1, Index: 1, Text: "old two"},
		{ID: "a.pdf:p2:c0", Source: "a.pdf", Page: 2, Index: 0, Text: "old three"},
	}
	if _, err := ix.IndexDocument(ctx, "a.pdf", first); err != nil {
		t.Fatal(err)
	}

	// Re-ingest shrank the document to a single chunk.
	second := []*models.Chunk{
		{ID: "a.pdf:p1:c0", Source: "a.pdf", Page: 1, Index: 0, Text: "new one"},
	}
	if _, err := ix.IndexDocument(ctx, "a.pdf", second); err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 1 {
		t.Errorf("stale chunks must be removed, index holds %d", idx.Count())
	}
}

func TestIndexer_emptyBatch(t *testing.T) {
	ix := NewIndexer(&flakyEmbedder{}, newMemIndex(t), 2, zap.NewNop())
	n, err := ix.Index(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("empty batch indexes nothing, got %d", n)
	}
}
