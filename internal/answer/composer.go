package answer

import (
	"context"

	"github.com/unistudy/unirag/internal/llm"
	"github.com/unistudy/unirag/internal/models"
	"go.uber.org/zap"
)

// Composer turns a question plus retrieved chunks into a streamed answer.
type Composer struct {
	generator llm.Generator
	logger    *zap.Logger
}

// NewComposer creates a composer over the given generation client.
func NewComposer(generator llm.Generator, logger *zap.Logger) *Composer {
	return &Composer{generator: generator, logger: logger}
}

// Compose streams the answer tokens for a question. The token channel is
// closed at end of stream. If the generation service disconnects mid-stream,
// the tokens received so far are followed by a truncation marker and the
// error is delivered on the error channel. Cancelling ctx aborts the
// underlying generation request.
func (c *Composer) Compose(ctx context.Context, question string, chunks []*models.RetrievedChunk) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)

	prompt := BuildPrompt(question, chunks)
	genTokens, genErrs := c.generator.Stream(ctx, prompt)

	go func() {
		defer close(tokens)
		defer close(errs)
		emitted := false
		for tok := range genTokens {
			emitted = true
			select {
			case tokens <- tok:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := <-genErrs; err != nil {
			if emitted {
				select {
				case tokens <- TruncationMarker:
				case <-ctx.Done():
				}
			}
			c.logger.Warn("generation stream failed", zap.Error(err))
			errs <- err
		}
	}()
	return tokens, errs
}
