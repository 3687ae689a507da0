package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the outreach server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Scholar  ScholarConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// ScholarConfig configures the bibliographic search client.
type ScholarConfig struct {
	BaseURL string
	Timeout time.Duration
}

// LLMConfig selects and configures the LLM collaborator. Provider "openai"
// talks to any OpenAI-compatible endpoint (BaseURL covers Fireworks et al);
// provider "mock" serves deterministic data and needs no key.
type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// PipelineConfig tunes the stage dispatcher.
type PipelineConfig struct {
	QueueSize    int
	StageTimeout time.Duration
}

var validProviders = map[string]bool{
	"openai": true,
	"mock":   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("OUTREACH_PORT", 8080),
			Env:  envString("OUTREACH_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Scholar: ScholarConfig{
			BaseURL: envString("SCHOLAR_BASE_URL", "https://api.semanticscholar.org/graph/v1"),
			Timeout: envDuration("SCHOLAR_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			Provider: envString("LLM_PROVIDER", "mock"),
			APIKey:   os.Getenv("LLM_API_KEY"),
			Model:    envString("LLM_MODEL", "accounts/fireworks/models/llama-v3p3-70b-instruct"),
			BaseURL:  envString("LLM_BASE_URL", "https://api.fireworks.ai/inference/v1"),
			Timeout:  envDurationSecs("LLM_TIMEOUT_SECS", 60*time.Second),
		},
		Pipeline: PipelineConfig{
			QueueSize:    envInt("PIPELINE_QUEUE_SIZE", 64),
			StageTimeout: envDuration("PIPELINE_STAGE_TIMEOUT", 5*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !strings.HasPrefix(c.Scholar.BaseURL, "http://") && !strings.HasPrefix(c.Scholar.BaseURL, "https://") {
		return fmt.Errorf("SCHOLAR_BASE_URL must start with http:// or https://, got %q", c.Scholar.BaseURL)
	}

	if !validProviders[c.LLM.Provider] {
		return fmt.Errorf("LLM_PROVIDER must be one of openai, mock; got %q", c.LLM.Provider)
	}
	if c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required when LLM_PROVIDER is openai")
	}

	if c.Pipeline.QueueSize <= 0 {
		return fmt.Errorf("PIPELINE_QUEUE_SIZE must be positive, got %d", c.Pipeline.QueueSize)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
