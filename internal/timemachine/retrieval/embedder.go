package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bdobrica/timemachine/common/redact"
	"github.com/bdobrica/timemachine/common/retry"
)

// Embedder produces vector embeddings for text. A nil vector with a nil
// error means embeddings are unavailable and the store ranks lexically.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NoopEmbedder disables vector search.
type NoopEmbedder struct{}

// Embed returns nil with no error.
func (NoopEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, nil }

const (
	defaultEmbeddingBase    = "https://api.openai.com/v1"
	defaultEmbeddingModel   = "text-embedding-3-small"
	defaultEmbeddingTimeout = 30 * time.Second
)

// OpenAIEmbedderConfig configures the OpenAI embedding provider.
type OpenAIEmbedderConfig struct {
	APIKey string
	// BaseURL defaults to https://api.openai.com/v1.
	BaseURL string
	// Model defaults to text-embedding-3-small.
	Model string
	// Timeout is the HTTP request timeout. Defaults to 30s.
	Timeout time.Duration
}

// OpenAIEmbedder implements Embedder using the embeddings API. It is safe
// for concurrent use.
type OpenAIEmbedder struct {
	cfg    OpenAIEmbedderConfig
	client *http.Client
}

// NewOpenAIEmbedder creates an Embedder backed by the OpenAI (or compatible)
// embeddings API.
func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig) *OpenAIEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEmbeddingBase
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultEmbeddingModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultEmbeddingTimeout
	}
	return &OpenAIEmbedder{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type embeddingStatusError struct{ code int }

func (e embeddingStatusError) Error() string {
	return fmt.Sprintf("embedder: unexpected HTTP status %d", e.code)
}

// Embed returns the embedding of text. 429 and 5xx answers are retried.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	data, err := json.Marshal(embeddingRequest{Input: text, Model: e.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal request: %w", err)
	}

	policy := retry.DefaultPolicy
	policy.Retryable = func(err error) bool {
		se, ok := err.(embeddingStatusError)
		return !ok || se.code == http.StatusTooManyRequests || se.code >= 500
	}

	var vec []float32
	err = retry.Do(ctx, policy, func() error {
		var callErr error
		vec, callErr = e.call(ctx, data)
		return callErr
	})
	if err != nil {
		return nil, errors.New(redact.Error(err, e.cfg.APIKey))
	}
	return vec, nil
}

func (e *OpenAIEmbedder) call(ctx context.Context, body []byte) ([]float32, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("embedder: create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedder: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder: read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, embeddingStatusError{code: resp.StatusCode}
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, retry.Permanent(fmt.Errorf("embedder: decode response: %w", err))
	}
	if embResp.Error != nil {
		return nil, retry.Permanent(fmt.Errorf("embedder: API error (%s): %s", embResp.Error.Type, embResp.Error.Message))
	}
	if len(embResp.Data) == 0 {
		return nil, retry.Permanent(fmt.Errorf("embedder: no embedding data returned"))
	}
	return embResp.Data[0].Embedding, nil
}

var (
	_ Embedder = NoopEmbedder{}
	_ Embedder = (*OpenAIEmbedder)(nil)
)
