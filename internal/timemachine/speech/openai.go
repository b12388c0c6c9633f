package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bdobrica/timemachine/common/redact"
	"github.com/bdobrica/timemachine/common/retry"
)

const (
	defaultTTSBase    = "https://api.openai.com/v1"
	defaultTTSModel   = "tts-1"
	defaultTTSVoice   = "onyx"
	defaultTTSFormat  = "mp3"
	defaultTTSTimeout = 60 * time.Second
)

// OpenAIConfig configures the OpenAI-compatible speech endpoint.
type OpenAIConfig struct {
	APIKey string
	// BaseURL defaults to https://api.openai.com/v1.
	BaseURL string
	// Model defaults to tts-1.
	Model string
	// Voice defaults to onyx.
	Voice string
	// Format is the response_format and file extension. Defaults to mp3.
	Format string
	// Speed is sent when non-zero (0.25 to 4.0).
	Speed   float64
	Timeout time.Duration
}

// OpenAI implements Synthesizer with the /audio/speech endpoint.
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAI returns a Synthesizer backed by the OpenAI (or compatible) API.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTTSBase
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultTTSModel
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultTTSVoice
	}
	if cfg.Format == "" {
		cfg.Format = defaultTTSFormat
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTTSTimeout
	}
	return &OpenAI{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Format returns the audio format written by Synthesize.
func (o *OpenAI) Format() string { return o.cfg.Format }

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

type statusError struct {
	code int
	body string
}

func (e statusError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("speech: HTTP %d: %s", e.code, e.body)
	}
	return fmt.Sprintf("speech: HTTP %d", e.code)
}

// Synthesize requests audio for text and writes it to outputPathHint with
// the configured format as extension. Parent directories are created.
func (o *OpenAI) Synthesize(ctx context.Context, text, outputPathHint string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("speech: empty text")
	}
	path := strings.TrimSuffix(outputPathHint, filepath.Ext(outputPathHint)) + "." + o.cfg.Format

	body, err := json.Marshal(speechRequest{
		Model:          o.cfg.Model,
		Input:          text,
		Voice:          o.cfg.Voice,
		ResponseFormat: o.cfg.Format,
		Speed:          o.cfg.Speed,
	})
	if err != nil {
		return "", fmt.Errorf("speech: marshal request: %w", err)
	}

	policy := retry.DefaultPolicy
	policy.Retryable = func(err error) bool {
		var se statusError
		if errors.As(err, &se) {
			return se.code == http.StatusTooManyRequests || se.code >= 500
		}
		return true
	}

	var audio []byte
	err = retry.Do(ctx, policy, func() error {
		var callErr error
		audio, callErr = o.call(ctx, body)
		return callErr
	})
	if err != nil {
		return "", errors.New(redact.Error(err, o.cfg.APIKey))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("speech: create output dir: %w", err)
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("speech: write audio: %w", err)
	}
	return path, nil
}

func (o *OpenAI) call(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("speech: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech: read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	if len(data) == 0 {
		return nil, retry.Permanent(errors.New("speech: empty audio"))
	}
	return data, nil
}

var _ Synthesizer = (*OpenAI)(nil)
