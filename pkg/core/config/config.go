// Package config loads pipeline settings from .env, an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"snf_underwriting/pkg/core/logging"
)

// DefaultMaxCombinedChars keeps one extraction request inside the model's context window
// (roughly 100k tokens at ~4 characters per token).
const DefaultMaxCombinedChars = 400000

// Config is the full pipeline configuration.
type Config struct {
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`

	LLM struct {
		Provider       string  `yaml:"provider" validate:"oneof=gemini deepseek"`
		Model          string  `yaml:"model"`
		RequestsPerMin float64 `yaml:"requests_per_minute" validate:"gt=0"`
	} `yaml:"llm"`

	Pipeline struct {
		MaxCombinedChars int    `yaml:"max_combined_chars" validate:"gt=0"`
		TextWorkers      int    `yaml:"text_workers" validate:"gte=1,lte=16"`
		CacheDir         string `yaml:"cache_dir"`
	} `yaml:"pipeline"`

	Benchmarks struct {
		File     string        `yaml:"file"`
		CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	} `yaml:"benchmarks"`

	DatabaseURL string `yaml:"-"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{LogLevel: "info"}
	cfg.LLM.Provider = "gemini"
	cfg.LLM.Model = "gemini-2.0-flash"
	cfg.LLM.RequestsPerMin = 20
	cfg.Pipeline.MaxCombinedChars = DefaultMaxCombinedChars
	cfg.Pipeline.TextWorkers = 4
	cfg.Benchmarks.CacheTTL = 10 * time.Minute
	return cfg
}

// Load reads .env (if present), then the YAML file at path (if non-empty and present),
// then environment overrides. The result is validated before it is returned.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logging.GetLogger().WithError(err).WithField("stage", "config").Warn("could not read .env")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// optional
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MAX_COMBINED_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.MaxCombinedChars = n
		}
	}
}
