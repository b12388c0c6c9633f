package llm

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

const defaultOpenAIBase = "https://api.openai.com/v1"

// OpenAIConfig configures the OpenAI-compatible adapter.
type OpenAIConfig struct {
	// APIKey is the bearer token for the API.
	APIKey string
	// BaseURL overrides the API endpoint (useful for local models like Ollama).
	// Defaults to https://api.openai.com/v1.
	BaseURL string
	// Model is the model name sent with every request.
	Model string
	// System is an optional system message sent before the prompt.
	System string
	// MaxTokens caps the reply. Zero leaves it to the provider.
	MaxTokens int
	// Temperature is sent when non-zero.
	Temperature float64
	// Timeout for each HTTP request. Defaults to 60s.
	Timeout time.Duration
	// Retry controls back-off on 429, 5xx and transport errors. The zero
	// value uses retry.DefaultPolicy.
	Retry retry.Policy
}

// OpenAI implements Generator using the chat completions API.
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAI returns a Generator backed by the OpenAI (or compatible) API.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBase
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy
	}
	cfg.Retry.Retryable = isTransient
	return &OpenAI{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the configured model name.
func (p *OpenAI) Model() string { return p.cfg.Model }

// --- wire types (subset of the OpenAI API) ---

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []struct {
		Message      oaiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: http %d: %s", e.Code, e.Message)
}

// Unwrap maps 429 onto ErrRateLimit.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusTooManyRequests {
		return ErrRateLimit
	}
	return nil
}

// isTransient reports whether a failed call is worth retrying.
func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	// Empty replies and decode failures will not improve on retry.
	return !errors.Is(err, ErrEmptyReply) && !errors.Is(err, errDecode)
}

var errDecode = errors.New("llm: decode response")

// Generate sends prompt as a single user message and returns the reply text.
func (p *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	msgs := make([]oaiMessage, 0, 2)
	if p.cfg.System != "" {
		msgs = append(msgs, oaiMessage{Role: "system", Content: p.cfg.System})
	}
	msgs = append(msgs, oaiMessage{Role: "user", Content: prompt})

	data, err := json.Marshal(oaiRequest{
		Model:       p.cfg.Model,
		Messages:    msgs,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	var text string
	err = retry.Do(ctx, p.cfg.Retry, func() error {
		var callErr error
		text, callErr = p.complete(ctx, data)
		return callErr
	})
	if err != nil {
		return "", &redactedError{msg: redact.Error(err, p.cfg.APIKey), err: err}
	}
	return text, nil
}

// redactedError hides the API key from the message while keeping the chain
// intact for errors.Is.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func (p *OpenAI) complete(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(body),
	)
	if err != nil {
		return "", retry.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	var oaiResp oaiResponse
	if jsonErr := json.Unmarshal(respBody, &oaiResp); jsonErr != nil && resp.StatusCode < 300 {
		return "", fmt.Errorf("%w: %v", errDecode, jsonErr)
	}
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		if oaiResp.Error != nil {
			msg = oaiResp.Error.Message
		}
		return "", &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if oaiResp.Error != nil {
		return "", fmt.Errorf("llm: provider error %s: %s", oaiResp.Error.Type, oaiResp.Error.Message)
	}
	if len(oaiResp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	text := strings.TrimSpace(oaiResp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

var _ Generator = (*OpenAI)(nil)
