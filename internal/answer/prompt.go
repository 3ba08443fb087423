// Package answer builds generation prompts from retrieved context and streams
// the model's response.
package answer

import (
	"fmt"
	"strings"

	"github.com/unistudy/unirag/internal/models"
)

const systemPrompt = `You are a study assistant answering questions about the user's course documents.

Rules:
- Answer in the language of the question, even when the documents use another language.
- Context blocks between "--- OCR START ---" and "--- OCR END ---" are verbatim transcriptions. When they conflict with blocks between "--- VISUAL DESC START ---" and "--- VISUAL DESC END ---", the OCR transcription wins.
- Distinguish the document's own subject or issuing institution from third parties that are merely mentioned in it.
- Keep technical terms, proper names, codes and formulas in their original language; translate only the surrounding explanation.
- Base the answer only on the provided context. If the context does not contain the answer, say so.
- Answer directly. Do not narrate your reasoning steps.`

// TruncationMarker is appended to a partial answer when the generation
// stream ends before completion.
const TruncationMarker = "\n[response truncated]"

// BuildPrompt assembles the full generation prompt: system instructions,
// numbered context blocks with source citations, and the question.
func BuildPrompt(question string, chunks []*models.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nContext:\n")
	for i, ch := range chunks {
		fmt.Fprintf(&b, "\n[SOURCE %d: %s p.%d]\n%s\n", i+1, ch.Source, ch.Page, ch.Text)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}
