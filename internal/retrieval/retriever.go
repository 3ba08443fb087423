package retrieval

import (
	"context"
	"fmt"

	"github.com/unistudy/unirag/internal/config"
	"github.com/unistudy/unirag/internal/llm"
	"github.com/unistudy/unirag/internal/models"
	"github.com/unistudy/unirag/internal/vector"
	"github.com/unistudy/unirag/pkg/utils"
	"go.uber.org/zap"
)

// Retriever embeds a question, fetches a candidate pool from the index and
// narrows it down with MMR.
type Retriever struct {
	embedder llm.Embedder
	index    vector.Index
	defaults config.RetrievalConfig
	logger   *zap.Logger
}

// NewRetriever creates a retriever. The config supplies defaults for
// requests that leave k, the pool size or lambda unset.
func NewRetriever(embedder llm.Embedder, idx vector.Index, defaults config.RetrievalConfig, logger *zap.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    idx,
		defaults: defaults,
		logger:   logger,
	}
}

// Retrieve returns up to k chunks for the query, diversified with MMR.
// Non-positive k and fetchPool fall back to the configured defaults; a nil
// lambda does too, while an explicit 0 selects for pure diversity.
// An empty index yields an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k, fetchPool int, lambda *float64) (*models.RetrievalResult, error) {
	if k <= 0 {
		k = r.defaults.K
	}
	if fetchPool <= 0 {
		fetchPool = r.defaults.FetchPoolSize
	}
	if fetchPool < k {
		fetchPool = k
	}
	lam := r.defaults.LambdaValue()
	if lambda != nil {
		lam = *lambda
	}

	result := &models.RetrievalResult{Query: query, Chunks: []*models.RetrievedChunk{}}
	if r.index.Count() == 0 {
		r.logger.Debug("retrieval against empty index", zap.String("query", utils.Truncate(query, 120)))
		return result, nil
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := r.index.Query(ctx, embedding, fetchPool)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	// Rank in the raw similarity ordering, before diversification reorders.
	ranks := make(map[string]int, len(candidates))
	for i, c := range candidates {
		ranks[c.ID] = i + 1
	}

	for _, sel := range SelectMMR(candidates, k, lam) {
		result.Chunks = append(result.Chunks, &models.RetrievedChunk{
			Chunk: models.Chunk{
				ID:     sel.ID,
				Source: sel.Source,
				Page:   sel.Page,
				Index:  sel.Index,
				Text:   sel.Text,
			},
			Similarity: sel.Similarity,
			Rank:       ranks[sel.ID],
		})
	}
	r.logger.Debug("retrieval complete",
		zap.String("query", utils.Truncate(query, 120)),
		zap.Int("pool", len(candidates)),
		zap.Int("selected", len(result.Chunks)))
	return result, nil
}
