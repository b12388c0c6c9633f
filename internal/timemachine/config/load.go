package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bdobrica/timemachine/common/environment"
)

// envFiles are loaded before the environment overlay. godotenv never
// overwrites variables that are already set.
var envFiles = []string{".env", ".env.local"}

// Load reads the configuration. An empty path reads DefaultPath and
// tolerates its absence; an explicit path must exist. Missing .env files
// are skipped, malformed ones are errors.
func Load(path string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	cfg := Default()
	optional := path == ""
	if optional {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && optional:
	case err != nil:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := Parse(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	return finish(cfg)
}

// LoadFS reads name from fsys with the same overlay as Load, without .env
// files.
func LoadFS(fsys fs.FS, name string) (Config, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", name, err)
	}
	cfg := Default()
	if err := Parse(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", name, err)
	}
	return finish(cfg)
}

// Parse decodes YAML over cfg. Keys absent from data keep their value.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func finish(cfg Config) (Config, error) {
	applyEnv(&cfg)
	if cfg.Scenario != "" {
		if err := cfg.ApplyScenario(cfg.Scenario); err != nil {
			return Config{}, err
		}
		// An explicit cap outranks the scenario's.
		environment.Int64("MAX_DAILY_CHARS", &cfg.Budget.MaxDailyChars)
	}
	cfg.inheritCredentials()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(c *Config) {
	environment.String("LLM_API_KEY", &c.LLM.APIKey)
	environment.String("LLM_BASE_URL", &c.LLM.BaseURL)
	environment.String("LLM_MODEL", &c.LLM.Model)
	environment.String("ESTIMATOR_API_KEY", &c.Estimator.APIKey)
	environment.String("ESTIMATOR_MODEL", &c.Estimator.Model)
	environment.Bool("ESTIMATOR_ENABLED", &c.Estimator.Enabled)
	environment.String("EMBEDDING_API_KEY", &c.Retrieval.Embedding.APIKey)
	environment.String("TTS_API_KEY", &c.Speech.APIKey)
	environment.Bool("TTS_ENABLED", &c.Speech.Enabled)
	environment.String("TIMEMACHINE_DB_PATH", &c.DBPath)
	environment.String("TIMEMACHINE_SCENARIO", &c.Scenario)
	environment.Int64("MAX_DAILY_CHARS", &c.Budget.MaxDailyChars)
	environment.String("LOG_LEVEL", &c.Log.Level)
	environment.String("LOG_FORMAT", &c.Log.Format)
	environment.String("MATRIX_HOMESERVER", &c.Matrix.Homeserver)
	environment.String("MATRIX_USER_ID", &c.Matrix.UserID)
	environment.String("MATRIX_ACCESS_TOKEN", &c.Matrix.AccessToken)
	environment.StringSlice("MATRIX_ROOMS", &c.Matrix.Rooms)
}

// inheritCredentials fills empty provider credentials from the LLM section.
func (c *Config) inheritCredentials() {
	if c.Estimator.APIKey == "" {
		c.Estimator.APIKey = c.LLM.APIKey
	}
	if c.Estimator.BaseURL == "" {
		c.Estimator.BaseURL = c.LLM.BaseURL
	}
	if c.Retrieval.Embedding.APIKey == "" {
		c.Retrieval.Embedding.APIKey = c.LLM.APIKey
	}
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = c.LLM.APIKey
	}
}

// Secrets lists every credential, for log redaction.
func (c Config) Secrets() []string {
	return []string{
		c.LLM.APIKey,
		c.Estimator.APIKey,
		c.Retrieval.Embedding.APIKey,
		c.Speech.APIKey,
		c.Matrix.AccessToken,
	}
}

// Dump renders c as YAML with credentials masked.
func (c Config) Dump() ([]byte, error) {
	mask := func(s *string) {
		if *s != "" {
			*s = "[REDACTED]"
		}
	}
	mask(&c.LLM.APIKey)
	mask(&c.Estimator.APIKey)
	mask(&c.Retrieval.Embedding.APIKey)
	mask(&c.Speech.APIKey)
	mask(&c.Matrix.AccessToken)
	return yaml.Marshal(c)
}
