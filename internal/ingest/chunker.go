package ingest

import (
	"fmt"

	"github.com/unistudy/unirag/internal/models"
)

// Chunker splits fused page text into overlapping rune-based chunks.
// Chunks never cross a page boundary; a page shorter than the chunk size
// yields exactly one chunk.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in runes).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split chunks one unit's fused text, carrying source and page metadata
// onto every chunk.
func (c *Chunker) Split(u *models.EnrichedUnit) []*models.Chunk {
	runes := []rune(FusedText(u))
	if len(runes) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	chunks := make([]*models.Chunk, 0)
	for start, index := 0, 0; ; start, index = start+step, index+1 {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, &models.Chunk{
			ID:     ChunkID(u.Source, u.Page, index),
			Source: u.Source,
			Page:   u.Page,
			Index:  index,
			Text:   string(runes[start:end]),
		})
		if end >= len(runes) {
			break
		}
	}
	return chunks
}

// ChunkID returns the stable identifier for a chunk, derived from its
// provenance so re-indexing the same chunk overwrites instead of duplicating.
func ChunkID(source string, page, index int) string {
	return fmt.Sprintf("%s:p%d:c%d", source, page, index)
}
