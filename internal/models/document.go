// Package models defines core data structures for enriched pages, chunks, and answers.
package models

import "time"

// EnrichedUnit is the fused content of a single source page: the parsed text
// plus the OCR and visual-description blocks produced by vision analysis.
// Any of the three content fields may be empty; a unit with all three empty
// is dropped during ingestion.
type EnrichedUnit struct {
	Source string `json:"source"`
	Page   int    `json:"page"` // 1-based
	Text   string `json:"text,omitempty"`
	OCR    string `json:"ocr,omitempty"`
	Visual string `json:"visual,omitempty"`
}

// Empty reports whether the unit carries no content at all.
func (u *EnrichedUnit) Empty() bool {
	return u.Text == "" && u.OCR == "" && u.Visual == ""
}

// Chunk is a bounded slice of a page's fused text. Chunks never span pages.
// ID is stable for a given (source, page, index) so re-indexing overwrites.
type Chunk struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Page   int    `json:"page"`
	Index  int    `json:"index"`
	Text   string `json:"text"`
}

// DocumentRecord is a registry row describing one ingested document.
type DocumentRecord struct {
	Fingerprint string    `json:"fingerprint"`
	Filename    string    `json:"filename"`
	Pages       int       `json:"pages"`
	Chunks      int       `json:"chunks"`
	FromCache   bool      `json:"from_cache,omitempty"`
	IngestedAt  time.Time `json:"ingested_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
