// Package ingest turns source documents into enriched, chunk-ready units:
// per-page text extraction joined with two-phase vision analysis, fused into
// tagged blocks and split into overlapping chunks.
package ingest

import (
	"strings"

	"github.com/unistudy/unirag/internal/models"
)

// Block markers are part of the prompt contract: the generation system
// prompt tells the model to treat OCR-tagged content as the authoritative
// transcription of the page.
const (
	ocrStart    = "--- OCR START ---"
	ocrEnd      = "--- OCR END ---"
	visualStart = "--- VISUAL DESC START ---"
	visualEnd   = "--- VISUAL DESC END ---"
)

// FusedText renders a unit's content as one retrievable text: raw text
// first, then the OCR block, then the visual block. The order is fixed and
// empty blocks are omitted entirely.
func FusedText(u *models.EnrichedUnit) string {
	var parts []string
	if u.Text != "" {
		parts = append(parts, u.Text)
	}
	if u.OCR != "" {
		parts = append(parts, ocrStart+"\n"+u.OCR+"\n"+ocrEnd)
	}
	if u.Visual != "" {
		parts = append(parts, visualStart+"\n"+u.Visual+"\n"+visualEnd)
	}
	return strings.Join(parts, "\n\n")
}
