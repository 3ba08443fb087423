// Package index turns chunk batches into embedded, stored vector records.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/unistudy/unirag/internal/llm"
	"github.com/unistudy/unirag/internal/models"
	"github.com/unistudy/unirag/internal/vector"
	"go.uber.org/zap"
)

// Indexer embeds chunks and writes them to the vector index. Chunk IDs are
// stable, so indexing the same document twice overwrites rather than
// duplicates.
type Indexer struct {
	embedder   llm.Embedder
	index      vector.Index
	maxRetries int
	logger     *zap.Logger
}

// NewIndexer creates an indexer. maxRetries bounds the per-chunk embedding
// retries after a failed batch.
func NewIndexer(embedder llm.Embedder, idx vector.Index, maxRetries int, logger *zap.Logger) *Indexer {
	return &Indexer{
		embedder:   embedder,
		index:      idx,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// IndexDocument replaces a document's chunks in the index: previous entries
// for the source are removed, then the new chunks are embedded and added.
// Returns the number of chunks actually indexed.
func (ix *Indexer) IndexDocument(ctx context.Context, source string, chunks []*models.Chunk) (int, error) {
	if err := ix.index.DeleteSource(ctx, source); err != nil {
		return 0, fmt.Errorf("clear previous index entries for %s: %w", source, err)
	}
	return ix.Index(ctx, chunks)
}

// Index embeds and stores a chunk batch. The whole batch is embedded in one
// call when possible; on batch failure each chunk is retried individually
// with backoff, and chunks that still fail are dropped with a warning so one
// bad chunk cannot block the rest of the document.
func (ix *Indexer) Index(ctx context.Context, chunks []*models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	embeddings, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		ix.logger.Warn("batch embedding failed, retrying per chunk", zap.Error(err))
		embeddings = ix.embedPerChunk(ctx, texts)
	}

	records := make([]*vector.Record, 0, len(chunks))
	for i, ch := range chunks {
		if embeddings[i] == nil {
			ix.logger.Warn("chunk dropped from index",
				zap.String("chunk", ch.ID), zap.String("source", ch.Source))
			continue
		}
		records = append(records, &vector.Record{
			ID:        ch.ID,
			Source:    ch.Source,
			Page:      ch.Page,
			Index:     ch.Index,
			Text:      ch.Text,
			Embedding: embeddings[i],
		})
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("no chunks could be embedded")
	}
	if err := ix.index.Add(ctx, records); err != nil {
		return 0, fmt.Errorf("store %d records: %w", len(records), err)
	}
	return len(records), nil
}

// embedPerChunk embeds each text individually with bounded retries. Failed
// texts leave a nil entry.
func (ix *Indexer) embedPerChunk(ctx context.Context, texts []string) [][]float32 {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		for attempt := 0; ; attempt++ {
			vec, err := ix.embedder.Embed(ctx, text)
			if err == nil {
				embeddings[i] = vec
				break
			}
			if attempt >= ix.maxRetries || ctx.Err() != nil {
				ix.logger.Warn("embedding failed after retries",
					zap.Int("chunk", i), zap.Int("attempts", attempt+1), zap.Error(err))
				break
			}
			select {
			case <-time.After(retryDelay(attempt)):
			case <-ctx.Done():
			}
		}
	}
	return embeddings
}

func retryDelay(attempt int) time.Duration {
	d := 200 * time.Millisecond << uint(attempt)
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
