// Package vision runs two-phase multimodal analysis of rendered pages:
// an OCR transcription pass followed by a visual-structure description pass.
package vision

import (
	"context"
	"time"

	"github.com/unistudy/unirag/internal/llm"
	"go.uber.org/zap"
)

// Analyzer issues the two analysis phases against the vision service.
// Each phase degrades independently: a failed request yields an empty block,
// never an error, because downstream fusion tolerates missing blocks.
type Analyzer struct {
	client  llm.Vision
	timeout time.Duration
	logger  *zap.Logger
}

// NewAnalyzer creates an analyzer. timeout bounds each phase request.
func NewAnalyzer(client llm.Vision, timeout time.Duration, logger *zap.Logger) *Analyzer {
	return &Analyzer{client: client, timeout: timeout, logger: logger}
}

// AnalyzePage runs both phases sequentially against the page image and
// returns the OCR transcription and the visual description. Either may be
// empty when its phase failed or the page has no such content.
func (a *Analyzer) AnalyzePage(ctx context.Context, source string, page int, imagePNG []byte) (ocr, visual string) {
	ocr = a.runPhase(ctx, source, page, "ocr", imagePNG, ocrInstruction)
	visual = a.runPhase(ctx, source, page, "description", imagePNG, describeInstruction)
	return ocr, visual
}

func (a *Analyzer) runPhase(ctx context.Context, source string, page int, phase string, imagePNG []byte, instruction string) string {
	phaseCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		phaseCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	block, err := a.client.Analyze(phaseCtx, imagePNG, instruction)
	if err != nil {
		a.logger.Warn("vision phase failed, leaving block empty",
			zap.String("source", source),
			zap.Int("page", page),
			zap.String("phase", phase),
			zap.Error(err))
		return ""
	}
	return block
}
