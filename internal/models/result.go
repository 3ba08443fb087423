package models

import "time"

// RetrievedChunk is a chunk selected for a query, with its similarity to the
// query and its rank in the raw similarity ordering of the candidate pool.
type RetrievedChunk struct {
	Chunk
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// RetrievalResult is the ordered context set selected for one query.
type RetrievalResult struct {
	Query  string            `json:"query"`
	Chunks []*RetrievedChunk `json:"chunks"`
}

// SourceRef points at the provenance of a cited chunk.
type SourceRef struct {
	ChunkID string `json:"chunk_id"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
}

// ConversationTurn is one question/answer exchange with its citations.
type ConversationTurn struct {
	ID        string      `json:"id"`
	Question  string      `json:"question"`
	Answer    string      `json:"answer"`
	Sources   []SourceRef `json:"sources,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
