package vector

import (
	"context"
	"testing"

	"github.com/unistudy/unirag/pkg/utils"
)

func vec(vals ...float32) []float32 {
	v := make([]float32, len(vals))
	copy(v, vals)
	utils.NormalizeL2(v)
	return v
}

func testRecords() []*Record {
	return []*Record{
		{ID: "a.pdf:p1:c0", Source: "a.pdf", Page: 1, Index: 0, Text: "alpha", Embedding: vec(1, 0, 0)},
		{ID: "a.pdf:p2:c0", Source: "a.pdf", Page: 2, Index: 0, Text: "beta", Embedding: vec(0, 1, 0)},
		{ID: "b.pdf:p1:c0", Source: "b.pdf", Page: 1, Index: 0, Text: "gamma", Embedding: vec(0, 0, 1)},
	}
}

func TestChromemIndex_addAndQuery(t *testing.T) {
	x, err := NewMemoryIndex()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := x.Add(ctx, testRecords()); err != nil {
		t.Fatal(err)
	}
	if x.Count() != 3 {
		t.Fatalf("expected 3 records, got %d", x.Count())
	}

	results, err := x.Query(ctx, vec(1, 0.1, 0), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a.pdf:p1:c0" {
		t.Errorf("best hit should be the aligned vector, got %s", results[0].ID)
	}
	if results[0].Page != 1 || results[0].Source != "a.pdf" {
		t.Errorf("metadata lost: %+v", results[0].Record)
	}
	if len(results[0].Embedding) != 3 {
		t.Error("query results must carry embeddings for diversity selection")
	}
}

func TestChromemIndex_queryClampsK(t *testing.T) {
	x, _ := NewMemoryIndex()
	ctx := context.Background()
	if err := x.Add(ctx, testRecords()[:1]); err != nil {
		t.Fatal(err)
	}
	results, err := x.Query(ctx, vec(1, 0, 0), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("k beyond index size should clamp, got %d results", len(results))
	}
}

func TestChromemIndex_overwriteByID(t *testing.T) {
	x, _ := NewMemoryIndex()
	ctx := context.Background()
	rec := testRecords()[0]
	if err := x.Add(ctx, []*Record{rec}); err != nil {
		t.Fatal(err)
	}
	updated := *rec
	updated.Text = "alpha v2"
	if err := x.Add(ctx, []*Record{&updated}); err != nil {
		t.Fatal(err)
	}
	if x.Count() != 1 {
		t.Fatalf("re-adding the same ID must overwrite, count=%d", x.Count())
	}
	results, _ := x.Query(ctx, rec.Embedding, 1)
	if results[0].Text != "alpha v2" {
		t.Errorf("overwrite did not take: %q", results[0].Text)
	}
}

func TestChromemIndex_deleteSource(t *testing.T) {
	x, _ := NewMemoryIndex()
	ctx := context.Background()
	if err := x.Add(ctx, testRecords()); err != nil {
		t.Fatal(err)
	}
	if err := x.DeleteSource(ctx, "a.pdf"); err != nil {
		t.Fatal(err)
	}
	if x.Count() != 1 {
		t.Fatalf("expected only b.pdf records to remain, count=%d", x.Count())
	}
}

func TestChromemIndex_persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	x, err := NewPersistentIndex(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := x.Add(ctx, testRecords()); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewPersistentIndex(dir)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Count() != 3 {
		t.Errorf("reopened index should hold 3 records, got %d", reopened.Count())
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := vec(1, 0)
	if got := CosineSimilarity(a, a); got < 0.999 {
		t.Errorf("self similarity should be 1, got %f", got)
	}
	if got := CosineSimilarity(vec(1, 0), vec(0, 1)); got != 0 {
		t.Errorf("orthogonal similarity should be 0, got %f", got)
	}
	if got := CosineSimilarity(vec(1, 0), []float32{1}); got != 0 {
		t.Errorf("mismatched dims should be 0, got %f", got)
	}
}
