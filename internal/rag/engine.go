// Package rag wires the ingestion and answering pipelines into one engine.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unistudy/unirag/internal/answer"
	"github.com/unistudy/unirag/internal/index"
	"github.com/unistudy/unirag/internal/ingest"
	"github.com/unistudy/unirag/internal/models"
	"github.com/unistudy/unirag/internal/retrieval"
	"github.com/unistudy/unirag/internal/storage"
	"github.com/unistudy/unirag/internal/vector"
)

// Engine is the top-level service: it ingests documents into the vector
// index and answers questions against it.
type Engine struct {
	pipeline  *ingest.Pipeline
	chunker   *ingest.Chunker
	indexer   *index.Indexer
	retriever *retrieval.Retriever
	composer  *answer.Composer
	store     storage.Storage
	vectors   vector.Index
	logger    *zap.Logger
}

// NewEngine assembles an engine from its components.
func NewEngine(
	pipeline *ingest.Pipeline,
	chunker *ingest.Chunker,
	indexer *index.Indexer,
	retriever *retrieval.Retriever,
	composer *answer.Composer,
	store storage.Storage,
	vectors vector.Index,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		pipeline:  pipeline,
		chunker:   chunker,
		indexer:   indexer,
		retriever: retriever,
		composer:  composer,
		store:     store,
		vectors:   vectors,
		logger:    logger,
	}
}

// IngestDocument runs the full ingestion of one document: enrichment (or
// cache hit), chunking, embedding, indexing, and registry update. A
// re-upload of identical bytes skips all model calls but still refreshes
// the index and registry so a renamed file is searchable under its new name.
func (e *Engine) IngestDocument(ctx context.Context, filename string, content []byte) (*models.DocumentRecord, error) {
	start := time.Now()
	units, fingerprint, fromCache, err := e.pipeline.Ingest(ctx, filename, content)
	if err != nil {
		return nil, err
	}

	chunks := make([]*models.Chunk, 0, len(units))
	for _, u := range units {
		chunks = append(chunks, e.chunker.Split(u)...)
	}

	indexed, err := e.indexer.IndexDocument(ctx, filename, chunks)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", filename, err)
	}

	record := &models.DocumentRecord{
		Fingerprint: fingerprint,
		Filename:    filename,
		Pages:       len(units),
		Chunks:      indexed,
		FromCache:   fromCache,
	}
	if err := e.store.UpsertDocument(ctx, record); err != nil {
		return nil, fmt.Errorf("register %s: %w", filename, err)
	}

	e.logger.Info("document ingested",
		zap.String("source", filename),
		zap.Int("pages", record.Pages),
		zap.Int("chunks", record.Chunks),
		zap.Bool("from_cache", fromCache),
		zap.Duration("took", time.Since(start)))
	return record, nil
}

// DeleteDocument removes a document from the vector index and the registry.
// The cache entry is kept; it is harmless and makes re-adding the file cheap.
func (e *Engine) DeleteDocument(ctx context.Context, filename string) error {
	if err := e.vectors.DeleteSource(ctx, filename); err != nil {
		return fmt.Errorf("remove %s from index: %w", filename, err)
	}
	if err := e.store.DeleteDocument(ctx, filename); err != nil {
		return fmt.Errorf("deregister %s: %w", filename, err)
	}
	e.logger.Info("document removed", zap.String("source", filename))
	return nil
}

// AskStream is a streamed answer in progress. Tokens is closed at end of
// stream; Errs delivers at most one terminal error. Sources lists the chunks
// the answer is grounded in, in retrieval order.
type AskStream struct {
	TurnID  string
	Sources []models.SourceRef
	Chunks  []*models.RetrievedChunk
	Tokens  <-chan string
	Errs    <-chan error
}

// Ask retrieves context for the question and streams the generated answer.
// The completed turn (including a truncated answer, when the stream fails
// mid-way) is persisted to the conversation history.
func (e *Engine) Ask(ctx context.Context, req *models.AskRequest) (*AskStream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := e.retriever.Retrieve(ctx, req.Question, req.K, req.FetchPoolSize, req.Lambda)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	sources := make([]models.SourceRef, 0, len(result.Chunks))
	for _, ch := range result.Chunks {
		sources = append(sources, models.SourceRef{ChunkID: ch.ID, Source: ch.Source, Page: ch.Page})
	}

	genTokens, genErrs := e.composer.Compose(ctx, req.Question, result.Chunks)

	turnID := uuid.NewString()
	tokens := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(tokens)
		defer close(errs)
		var full strings.Builder
		for tok := range genTokens {
			full.WriteString(tok)
			select {
			case tokens <- tok:
			case <-ctx.Done():
			}
		}
		streamErr := <-genErrs
		if streamErr != nil {
			errs <- streamErr
		}
		e.recordTurn(turnID, req.Question, full.String(), sources)
	}()

	return &AskStream{
		TurnID:  turnID,
		Sources: sources,
		Chunks:  result.Chunks,
		Tokens:  tokens,
		Errs:    errs,
	}, nil
}

// recordTurn persists a finished exchange. History is best-effort; a write
// failure is logged, not surfaced to the asker.
func (e *Engine) recordTurn(turnID, question, answerText string, sources []models.SourceRef) {
	if answerText == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	turn := &models.ConversationTurn{
		ID:       turnID,
		Question: question,
		Answer:   answerText,
		Sources:  sources,
	}
	if err := e.store.SaveTurn(ctx, turn); err != nil {
		e.logger.Warn("conversation history write failed",
			zap.String("turn", turnID), zap.Error(err))
	}
}

// Status describes the current corpus.
type Status struct {
	Documents int64                    `json:"documents"`
	Chunks    int                      `json:"chunks"`
	Sources   []*models.DocumentRecord `json:"sources"`
}

// Status reports the indexed corpus: registered documents and chunk count.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	count, err := e.store.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	return &Status{
		Documents: count,
		Chunks:    e.vectors.Count(),
		Sources:   docs,
	}, nil
}

// History returns the most recent conversation turns, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]*models.ConversationTurn, error) {
	return e.store.ListTurns(ctx, limit)
}
