// Package llm provides capability interfaces for the remote model services
// (embedding, vision, generation) and an Ollama-compatible HTTP client.
package llm

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Vision answers an instruction about a page image.
type Vision interface {
	Analyze(ctx context.Context, imagePNG []byte, instruction string) (string, error)
}

// Generator streams a completion for a prompt. The token channel is closed at
// end of stream; the error channel delivers at most one terminal error. A
// stream that ends before the service signals completion is reported as an
// error so callers can mark the partial output as truncated.
type Generator interface {
	Stream(ctx context.Context, prompt string) (<-chan string, <-chan error)
}
