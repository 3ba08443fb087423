package llm

import (
	"context"
	"testing"
)

func TestCachingEmbedder_hitSkipsInner(t *testing.T) {
	mock := NewMockClient(16)
	e := NewCachingEmbedder(mock, 10)
	ctx := context.Background()

	if _, err := e.Embed(ctx, "repeated query"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(ctx, "repeated query"); err != nil {
		t.Fatal(err)
	}
	if mock.EmbedCalls() != 1 {
		t.Errorf("expected 1 inner call, got %d", mock.EmbedCalls())
	}
}

func TestCachingEmbedder_eviction(t *testing.T) {
	mock := NewMockClient(16)
	e := NewCachingEmbedder(mock, 2)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		if _, err := e.Embed(ctx, text); err != nil {
			t.Fatal(err)
		}
	}
	// "a" was evicted by "c"; embedding it again goes to the inner embedder.
	if _, err := e.Embed(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if mock.EmbedCalls() != 4 {
		t.Errorf("expected 4 inner calls, got %d", mock.EmbedCalls())
	}
}

func TestCachingEmbedder_batchMixedHits(t *testing.T) {
	mock := NewMockClient(16)
	e := NewCachingEmbedder(mock, 10)
	ctx := context.Background()

	if _, err := e.Embed(ctx, "known"); err != nil {
		t.Fatal(err)
	}
	vecs, err := e.EmbedBatch(ctx, []string{"known", "new"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 2 || vecs[0] == nil || vecs[1] == nil {
		t.Fatalf("expected 2 vectors, got %v", vecs)
	}
	if mock.EmbedCalls() != 2 {
		t.Errorf("expected 2 inner calls (known cached), got %d", mock.EmbedCalls())
	}
}

func TestMockClient_deterministicEmbeddings(t *testing.T) {
	mock := NewMockClient(64)
	ctx := context.Background()
	a, _ := mock.Embed(ctx, "introduction to databases")
	b, _ := mock.Embed(ctx, "introduction to databases")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text must embed identically")
		}
	}
	c, _ := mock.Embed(ctx, "entirely different words here")
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts should embed differently")
	}
}
