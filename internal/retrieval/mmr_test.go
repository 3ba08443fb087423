package retrieval

import (
	"testing"

	"github.com/unistudy/unirag/internal/vector"
)

func candidate(id string, sim float64, embedding []float32) *vector.Result {
	return &vector.Result{
		Record:     vector.Record{ID: id, Embedding: embedding},
		Similarity: sim,
	}
}

func ids(results []*vector.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestSelectMMR_countAndUniqueness(t *testing.T) {
	candidates := []*vector.Result{
		candidate("a", 0.9, []float32{1, 0, 0}),
		candidate("b", 0.8, []float32{0, 1, 0}),
		candidate("c", 0.7, []float32{0, 0, 1}),
	}
	for _, k := range []int{1, 2, 3, 10} {
		got := SelectMMR(candidates, k, 0.5)
		want := k
		if want > len(candidates) {
			want = len(candidates)
		}
		if len(got) != want {
			t.Errorf("k=%d: got %d results", k, len(got))
		}
		seen := map[string]bool{}
		for _, r := range got {
			if seen[r.ID] {
				t.Errorf("k=%d: duplicate %s", k, r.ID)
			}
			seen[r.ID] = true
		}
	}
	if got := SelectMMR(candidates, 0, 0.5); got != nil {
		t.Errorf("k=0 must select nothing, got %v", ids(got))
	}
	if got := SelectMMR(nil, 3, 0.5); got != nil {
		t.Errorf("no candidates must select nothing, got %v", ids(got))
	}
}

func TestSelectMMR_lambdaOneIsTopK(t *testing.T) {
	// Near-duplicate embeddings: pure relevance ignores the redundancy.
	candidates := []*vector.Result{
		candidate("a", 0.95, []float32{1, 0}),
		candidate("b", 0.94, []float32{1, 0}),
		candidate("c", 0.50, []float32{0, 1}),
	}
	got := ids(SelectMMR(candidates, 2, 1.0))
	if got[0] != "a" || got[1] != "b" {
		t.Errorf("lambda=1 must equal top-k by similarity, got %v", got)
	}
}

func TestSelectMMR_lambdaZeroPrefersDiversity(t *testing.T) {
	candidates := []*vector.Result{
		candidate("a", 0.95, []float32{1, 0}),
		candidate("a2", 0.94, []float32{1, 0}), // duplicate of a
		candidate("b", 0.50, []float32{0, 1}),
	}
	got := ids(SelectMMR(candidates, 2, 0.0))
	if got[0] != "a" {
		t.Errorf("first pick is always the most similar, got %v", got)
	}
	if got[1] != "b" {
		t.Errorf("lambda=0 must avoid the duplicate, got %v", got)
	}
}

func TestSelectMMR_balancedAvoidsRedundancy(t *testing.T) {
	candidates := []*vector.Result{
		candidate("a", 0.90, []float32{1, 0, 0}),
		candidate("a2", 0.89, []float32{1, 0, 0}),
		candidate("b", 0.60, []float32{0, 1, 0}),
		candidate("c", 0.40, []float32{0, 0, 1}),
	}
	got := ids(SelectMMR(candidates, 3, 0.6))
	if got[0] != "a" {
		t.Fatalf("unexpected first pick: %v", got)
	}
	// a2 scores 0.6*0.89 - 0.4*1.0 = 0.134; b scores 0.6*0.60 - 0 = 0.36.
	if got[1] != "b" {
		t.Errorf("the duplicate must lose to the orthogonal chunk, got %v", got)
	}
}

func TestSelectMMR_tieBreaksByRank(t *testing.T) {
	// Identical similarities and mutually orthogonal embeddings: every step
	// is a tie, so the selection must follow the input ordering.
	candidates := []*vector.Result{
		candidate("first", 0.8, []float32{1, 0, 0}),
		candidate("second", 0.8, []float32{0, 1, 0}),
		candidate("third", 0.8, []float32{0, 0, 1}),
	}
	got := ids(SelectMMR(candidates, 3, 0.5))
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie-break must preserve rank order: got %v", got)
		}
	}
}

func TestSelectMMR_doesNotMutateInput(t *testing.T) {
	candidates := []*vector.Result{
		candidate("a", 0.9, []float32{1, 0}),
		candidate("b", 0.8, []float32{0, 1}),
	}
	SelectMMR(candidates, 2, 0.0)
	if candidates[0].ID != "a" || candidates[1].ID != "b" {
		t.Error("candidate slice order changed")
	}
}
