package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/unistudy/unirag/pkg/utils"
)

// Config configures the Ollama-compatible model service client.
type Config struct {
	BaseURL       string
	GenerateModel string
	EmbedModel    string
	VisionModel   string
	Timeout       time.Duration
	MaxRetries    int
}

// Client talks to an Ollama-compatible HTTP endpoint. It implements
// Embedder, Vision, and Generator.
type Client struct {
	cfg Config
	// http enforces the request timeout; streamHTTP has none because a
	// generation stream legitimately outlives any single-request budget
	// and is bounded by the caller's context instead.
	http       *http.Client
	streamHTTP *http.Client
}

// NewClient creates a model service client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		http:       &http.Client{Timeout: cfg.Timeout},
		streamHTTP: &http.Client{},
	}
}

// Embed returns the embedding vector for text, normalized to unit length.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]any{
		"model":  c.cfg.EmbedModel,
		"prompt": text,
	}
	data, err := c.postJSON(ctx, "/api/embeddings", payload)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, errors.New("embedding service returned no vector")
	}
	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch embeds each text in order. The service has no batch endpoint,
// so this is a sequential loop; an error aborts the batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch item %d: %w", i, err)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Analyze sends a page image with an instruction to the vision model and
// returns the textual response.
func (c *Client) Analyze(ctx context.Context, imagePNG []byte, instruction string) (string, error) {
	payload := map[string]any{
		"model":  c.cfg.VisionModel,
		"prompt": instruction,
		"images": []string{base64.StdEncoding.EncodeToString(imagePNG)},
		"stream": false,
	}
	data, err := c.postJSON(ctx, "/api/generate", payload)
	if err != nil {
		return "", fmt.Errorf("vision request: %w", err)
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode vision response: %w", err)
	}
	return out.Response, nil
}

// Stream runs a generation request and forwards tokens as they arrive.
func (c *Client) Stream(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(tokens)
		defer close(errs)
		payload := map[string]any{
			"model":  c.cfg.GenerateModel,
			"prompt": prompt,
			"stream": true,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			errs <- err
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			errs <- err
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.streamHTTP.Do(req)
		if err != nil {
			errs <- fmt.Errorf("generation request: %w", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			errs <- fmt.Errorf("generation service: %s", resp.Status)
			return
		}
		dec := json.NewDecoder(resp.Body)
		for {
			var line struct {
				Response string `json:"response"`
				Done     bool   `json:"done"`
			}
			if err := dec.Decode(&line); err != nil {
				if ctx.Err() != nil {
					errs <- ctx.Err()
					return
				}
				if errors.Is(err, io.EOF) {
					// The service hung up without signalling completion.
					errs <- errors.New("generation stream ended before completion")
					return
				}
				errs <- fmt.Errorf("generation stream: %w", err)
				return
			}
			if line.Response != "" {
				select {
				case tokens <- line.Response:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if line.Done {
				return
			}
		}
	}()
	return tokens, errs
}

// postJSON posts payload and returns the response body, retrying transient
// failures (connection errors, 429, 5xx) with exponential backoff.
func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay(attempt - 1)):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("model service: %s", resp.Status)
			continue
		}
		if resp.StatusCode >= 300 {
			data, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("model service: %s: %s", resp.Status, bytes.TrimSpace(data))
		}
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return data, nil
	}
	return nil, lastErr
}

// retryDelay returns the backoff for the given attempt: 200ms doubling,
// capped at 5s.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
