// Package retrieval selects relevant, diverse chunks for a question using
// maximal marginal relevance over the vector index.
package retrieval

import (
	"github.com/unistudy/unirag/internal/vector"
)

// SelectMMR picks up to k candidates greedily. At each step the candidate
// with the highest marginal score wins:
//
//	score = lambda*sim(query, c) - (1-lambda)*max(sim(c, selected))
//
// The first pick is always the most query-similar candidate. Ties break by
// query-similarity rank, then by input order, so selection is deterministic.
// Candidates are expected sorted by descending query similarity, as the
// index returns them.
func SelectMMR(candidates []*vector.Result, k int, lambda float64) []*vector.Result {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	selected := make([]*vector.Result, 0, k)
	remaining := make([]*vector.Result, len(candidates))
	copy(remaining, candidates)

	for len(selected) < k {
		best := -1
		bestScore := 0.0
		for i, c := range remaining {
			score := lambda * c.Similarity
			if len(selected) > 0 {
				maxSim := 0.0
				for _, s := range selected {
					if sim := vector.CosineSimilarity(c.Embedding, s.Embedding); sim > maxSim {
						maxSim = sim
					}
				}
				score -= (1 - lambda) * maxSim
			}
			// Strict > keeps the earlier (higher-ranked) candidate on ties.
			if best == -1 || score > bestScore {
				best, bestScore = i, score
			}
		}
		selected = append(selected, remaining[best])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return selected
}
