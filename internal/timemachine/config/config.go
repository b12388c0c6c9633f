// Package config loads the time machine configuration from a YAML file,
// .env files and environment variables, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/bdobrica/timemachine/internal/timemachine/length"
	"github.com/bdobrica/timemachine/internal/timemachine/memory"
	"github.com/bdobrica/timemachine/internal/timemachine/observability"
	"github.com/bdobrica/timemachine/internal/timemachine/retrieval"
	"github.com/bdobrica/timemachine/internal/timemachine/usage"
)

// DefaultPath is the configuration file read when --config is not given.
const DefaultPath = "timemachine.yaml"

// Config is the full process configuration.
type Config struct {
	DBPath    string          `yaml:"db_path"`
	Scenario  string          `yaml:"scenario"`
	Persona   PersonaConfig   `yaml:"persona"`
	LLM       LLMConfig       `yaml:"llm"`
	Estimator EstimatorConfig `yaml:"estimator"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Length    LengthConfig    `yaml:"length"`
	Budget    BudgetConfig    `yaml:"budget"`
	History   HistoryConfig   `yaml:"history"`
	Speech    SpeechConfig    `yaml:"speech"`
	Log       LogConfig       `yaml:"log"`
	Matrix    MatrixConfig    `yaml:"matrix"`
}

// PersonaConfig selects the persona. An empty File uses the built-in one.
type PersonaConfig struct {
	File string `yaml:"file"`
}

// LLMConfig configures the persona reply model.
type LLMConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EstimatorConfig configures the secondary length estimator. Empty
// credentials fall back to the LLM section.
type EstimatorConfig struct {
	Enabled      bool          `yaml:"enabled"`
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	Timeout      time.Duration `yaml:"timeout"`
	ContextChars int           `yaml:"context_chars"`
}

// RetrievalConfig bounds the context bundle and configures ingestion.
type RetrievalConfig struct {
	MaxChars     int             `yaml:"max_chars"`
	TopK         int             `yaml:"top_k"`
	ChunkSize    int             `yaml:"chunk_size"`
	ChunkOverlap int             `yaml:"chunk_overlap"`
	Embedding    EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig enables vector ranking. Disabled means lexical ranking.
type EmbeddingConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// LengthConfig holds the per-type base windows.
type LengthConfig struct {
	Windows length.Windows `yaml:"windows"`
}

// BudgetConfig is the period allowance and its rollover schedule.
type BudgetConfig struct {
	MaxDailyChars int64        `yaml:"max_daily_chars"`
	MaxDailyCost  float64      `yaml:"max_daily_cost"`
	CostPerChar   float64      `yaml:"cost_per_char"`
	ResetSchedule string       `yaml:"reset_schedule"`
	Partitioned   bool         `yaml:"partitioned"`
	Alerts        AlertsConfig `yaml:"alerts"`
}

// AlertsConfig are fractions of max_daily_chars.
type AlertsConfig struct {
	Warning   float64 `yaml:"warning"`
	Critical  float64 `yaml:"critical"`
	Emergency float64 `yaml:"emergency"`
}

// HistoryConfig sets how many exchanges each conversation keeps.
type HistoryConfig struct {
	Depth int `yaml:"depth"`
}

// SpeechConfig configures synthesis.
type SpeechConfig struct {
	Enabled   bool    `yaml:"enabled"`
	APIKey    string  `yaml:"api_key"`
	BaseURL   string  `yaml:"base_url"`
	Model     string  `yaml:"model"`
	Voice     string  `yaml:"voice"`
	Format    string  `yaml:"format"`
	Speed     float64 `yaml:"speed"`
	OutputDir string  `yaml:"output_dir"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MatrixConfig configures the chat gateway.
type MatrixConfig struct {
	Homeserver  string   `yaml:"homeserver"`
	UserID      string   `yaml:"user_id"`
	AccessToken string   `yaml:"access_token"`
	Rooms       []string `yaml:"rooms"`
}

// Default returns the built-in configuration.
func Default() Config {
	b := usage.DefaultBudget()
	th := usage.DefaultThresholds()
	return Config{
		DBPath: "timemachine.db",
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   800,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		},
		Estimator: EstimatorConfig{
			Enabled:      true,
			Model:        "gpt-4o-mini",
			Timeout:      length.DefaultEstimateTimeout,
			ContextChars: length.DefaultContextChars,
		},
		Retrieval: RetrievalConfig{
			MaxChars:     retrieval.DefaultMaxChars,
			TopK:         retrieval.DefaultTopK,
			ChunkSize:    retrieval.DefaultChunkSize,
			ChunkOverlap: retrieval.DefaultChunkOverlap,
		},
		Length: LengthConfig{Windows: length.DefaultWindows()},
		Budget: BudgetConfig{
			MaxDailyChars: b.MaxDailyChars,
			MaxDailyCost:  b.MaxDailyCost,
			CostPerChar:   b.CostPerChar,
			ResetSchedule: "@daily",
			Alerts:        AlertsConfig{Warning: th.Warning, Critical: th.Critical, Emergency: th.Emergency},
		},
		History: HistoryConfig{Depth: memory.DefaultDepth},
		Speech: SpeechConfig{
			Model:     "tts-1",
			Voice:     "onyx",
			Format:    "mp3",
			OutputDir: "audio",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// UsageBudget converts the budget section.
func (c Config) UsageBudget() usage.Budget {
	return usage.Budget{
		MaxDailyChars: c.Budget.MaxDailyChars,
		MaxDailyCost:  c.Budget.MaxDailyCost,
		CostPerChar:   c.Budget.CostPerChar,
	}
}

// Thresholds converts the alert section.
func (c Config) Thresholds() usage.Thresholds {
	return usage.Thresholds{
		Warning:   c.Budget.Alerts.Warning,
		Critical:  c.Budget.Alerts.Critical,
		Emergency: c.Budget.Alerts.Emergency,
	}
}

// Validate reports every configuration error found.
func (c Config) Validate() error {
	var errs []error
	if err := c.UsageBudget().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Length.Windows.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Retrieval.MaxChars <= 0 {
		errs = append(errs, fmt.Errorf("config: retrieval.max_chars must be positive, got %d", c.Retrieval.MaxChars))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("config: retrieval.top_k must be positive, got %d", c.Retrieval.TopK))
	}
	if c.History.Depth <= 0 {
		errs = append(errs, fmt.Errorf("config: history.depth must be positive, got %d", c.History.Depth))
	}
	if _, ok := observability.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("config: unknown log level %q", c.Log.Level))
	}
	a := c.Budget.Alerts
	if a.Warning < 0 || a.Critical < a.Warning || a.Emergency < a.Critical {
		errs = append(errs, fmt.Errorf("config: budget alerts must be ascending, got %g/%g/%g",
			a.Warning, a.Critical, a.Emergency))
	}
	return errors.Join(errs...)
}
