package llm

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/unistudy/unirag/pkg/utils"
)

// MockClient is a deterministic in-process stand-in for the model services.
// Embeddings are a hashed bag-of-words, so texts sharing vocabulary are
// similar and identical texts are identical. Vision and generation return
// fixtures, overridable per test through the Fn fields.
type MockClient struct {
	dimensions int

	// AnalyzeFn, when set, replaces the default vision fixture.
	AnalyzeFn func(ctx context.Context, imagePNG []byte, instruction string) (string, error)
	// StreamTokens is the canned generation output; defaults to a short answer.
	StreamTokens []string
	// StreamFailAfter, when positive, makes Stream fail after that many tokens.
	StreamFailAfter int
	// EmbedErr, when set, makes every Embed call fail.
	EmbedErr error

	mu          sync.Mutex
	embedCalls  int
	visionCalls int
}

// NewMockClient returns a mock producing embeddings of the given dimension.
func NewMockClient(dimensions int) *MockClient {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockClient{
		dimensions:   dimensions,
		StreamTokens: []string{"The ", "answer ", "is ", "grounded ", "in ", "the ", "sources."},
	}
}

// Embed maps each word into a hashed bucket and normalizes the result.
func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}
	vec := make([]float32, m.dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(word, ".,:;!?()[]\"'")))
		vec[int(h.Sum32())%m.dimensions] += 1
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (m *MockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Analyze returns a fixture block, or delegates to AnalyzeFn when set.
func (m *MockClient) Analyze(ctx context.Context, imagePNG []byte, instruction string) (string, error) {
	m.mu.Lock()
	m.visionCalls++
	m.mu.Unlock()
	if m.AnalyzeFn != nil {
		return m.AnalyzeFn(ctx, imagePNG, instruction)
	}
	if strings.Contains(instruction, "Transcribe") {
		return "MOCK OCR TEXT", nil
	}
	return "MOCK VISUAL DESCRIPTION", nil
}

// Stream emits StreamTokens, optionally failing part-way through.
func (m *MockClient) Stream(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(tokens)
		defer close(errs)
		for i, tok := range m.StreamTokens {
			if m.StreamFailAfter > 0 && i >= m.StreamFailAfter {
				errs <- context.DeadlineExceeded
				return
			}
			select {
			case tokens <- tok:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return tokens, errs
}

// EmbedCalls returns how many Embed calls were made.
func (m *MockClient) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// VisionCalls returns how many Analyze calls were made.
func (m *MockClient) VisionCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visionCalls
}
