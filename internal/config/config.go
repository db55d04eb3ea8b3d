package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     string
	LogLevel string

	// OpenAI evaluation. An empty key switches to mocked responses.
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	LLMTemperature    float64
	LLMMaxTokens      int
	LLMTimeout        time.Duration
	LLMCacheTTL       time.Duration
	LLMRatePerSecond  float64
	LLMBurst          int
	LLMRetryAttempts  int
	LLMBreakerTimeout time.Duration

	// Upload limits
	MaxUploadBytes int64

	// Prompt budget for the draft, in estimated tokens
	DraftMaxTokens int

	// Session state
	SessionTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port:     envOr("PORT", "8501"),
		LogLevel: envOr("LOG_LEVEL", "info"),

		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:       envOr("OPENAI_MODEL", "gpt-4o-mini"),
		LLMTemperature:    envFloat("LLM_TEMPERATURE", 0.3),
		LLMMaxTokens:      envInt("LLM_MAX_TOKENS", 1400),
		LLMTimeout:        envDuration("LLM_TIMEOUT", 120*time.Second),
		LLMCacheTTL:       envDuration("LLM_CACHE_TTL", 1*time.Hour),
		LLMRatePerSecond:  envFloat("LLM_RATE_PER_SECOND", 2),
		LLMBurst:          envInt("LLM_BURST", 4),
		LLMRetryAttempts:  envInt("LLM_RETRY_ATTEMPTS", 3),
		LLMBreakerTimeout: envDuration("LLM_BREAKER_TIMEOUT", 30*time.Second),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 20971520), // 20MB

		DraftMaxTokens: envInt("DRAFT_MAX_TOKENS", 1000),

		SessionTTL: envDuration("SESSION_TTL", 2*time.Hour),
	}

	if cfg.LLMMaxTokens <= 0 {
		cfg.LLMMaxTokens = 1400
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 120 * time.Second
	}
	if cfg.LLMBurst <= 0 {
		cfg.LLMBurst = 4
	}
	if cfg.LLMRetryAttempts <= 0 {
		cfg.LLMRetryAttempts = 3
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20971520
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}

	return cfg
}

// Validate rejects settings the server cannot run with. A missing API key is
// allowed: evaluations are then mocked.
func (c Config) Validate() error {
	if n, err := strconv.Atoi(c.Port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("PORT must be a TCP port, got %q", c.Port)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be within 0..2, got %v", c.LLMTemperature)
	}
	if c.LLMRatePerSecond < 0 {
		return fmt.Errorf("LLM_RATE_PER_SECOND must not be negative")
	}
	if c.DraftMaxTokens < 0 {
		return fmt.Errorf("DRAFT_MAX_TOKENS must not be negative")
	}
	if c.OpenAIAPIKey != "" && c.OpenAIModel == "" {
		return fmt.Errorf("OPENAI_MODEL is required when OPENAI_API_KEY is set")
	}
	return nil
}

// Mocked reports whether evaluations will be answered without calling the API.
func (c Config) Mocked() bool {
	return strings.TrimSpace(c.OpenAIAPIKey) == ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
