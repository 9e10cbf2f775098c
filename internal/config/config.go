// Package config provides configuration management for the blog client.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingBaseURL           = errors.New("api.base_url is required")
	ErrInvalidBaseURL           = errors.New("api.base_url must be an absolute http(s) URL")
	ErrInvalidTimeout           = errors.New("api.timeout_sec must be at least 1")
	ErrInvalidPayloadEncoding   = errors.New("api.payload_encoding must be 'json' or 'form'")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrMissingFixture           = errors.New("seed.fixture is required")
	ErrInvalidMaxRounds         = errors.New("seed.max_rounds must be at least 1")
	ErrInvalidConcurrency       = errors.New("seed.concurrency must be at least 1")
	ErrInvalidRate              = errors.New("seed.rate_per_sec must be non-negative")
	ErrMissingTemplateName      = errors.New("render.template_name is required")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be 'text' or 'json'")
)

// Payload encodings accepted by the backend.
const (
	EncodingJSON = "json"
	EncodingForm = "form"
)

// Config represents the complete client configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Retry   RetryPolicy   `yaml:"retry"`
	Seed    SeedConfig    `yaml:"seed"`
	Render  RenderConfig  `yaml:"render"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig describes the article backend.
type APIConfig struct {
	BaseURL         string `yaml:"base_url" env:"BLOG_API_BASE_URL"`
	AuthToken       string `yaml:"auth_token" env:"BLOG_API_TOKEN"`
	PayloadEncoding string `yaml:"payload_encoding" env:"BLOG_API_PAYLOAD_ENCODING"`
	UserAgent       string `yaml:"user_agent"`
	TimeoutSec      int    `yaml:"timeout_sec" env:"BLOG_API_TIMEOUT_SEC"`
}

// RetryPolicy defines retry behavior for idempotent requests and seeding rounds.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts" env:"BLOG_RETRY_MAX_ATTEMPTS"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// SeedConfig controls how an empty backend is populated.
type SeedConfig struct {
	// Fixture is a local path or an http(s) URL to a JSON array of rows.
	Fixture     string  `yaml:"fixture" env:"BLOG_SEED_FIXTURE"`
	MaxRounds   int     `yaml:"max_rounds" env:"BLOG_SEED_MAX_ROUNDS"`
	Concurrency int     `yaml:"concurrency"`
	RatePerSec  float64 `yaml:"rate_per_sec"`
	Burst       int     `yaml:"burst"`
}

// RenderConfig controls HTML rendering.
type RenderConfig struct {
	TemplateFile string `yaml:"template_file" env:"BLOG_TEMPLATE_FILE"`
	TemplateName string `yaml:"template_name"`
	Sanitize     bool   `yaml:"sanitize"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"BLOG_LOG_LEVEL"`
	Format string `yaml:"format" env:"BLOG_LOG_FORMAT"`
}

// Default returns a configuration that works against a local backend.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:         "http://localhost:3000",
			PayloadEncoding: EncodingJSON,
			UserAgent:       "blog-client/1.0",
			TimeoutSec:      30,
		},
		Retry: RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    500,
			MaxDelayMs:        10000,
			BackoffMultiplier: 2.0,
		},
		Seed: SeedConfig{
			Fixture:     "./data/hackerIpsum.json",
			MaxRounds:   3,
			Concurrency: 4,
			RatePerSec:  20,
			Burst:       5,
		},
		Render: RenderConfig{
			TemplateName: "article-template",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads defaults, overlays the YAML file when filepath is set,
// then applies environment overrides and validates the result.
func LoadConfig(filepath string) (*Config, error) {
	cfg := Default()

	if filepath != "" {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return ErrMissingBaseURL
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.API.BaseURL)
	}

	if c.API.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.API.PayloadEncoding != EncodingJSON && c.API.PayloadEncoding != EncodingForm {
		return ErrInvalidPayloadEncoding
	}

	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Seed.Fixture == "" {
		return ErrMissingFixture
	}

	if c.Seed.MaxRounds < 1 {
		return ErrInvalidMaxRounds
	}

	if c.Seed.Concurrency < 1 {
		return ErrInvalidConcurrency
	}

	if c.Seed.RatePerSec < 0 {
		return ErrInvalidRate
	}

	if c.Render.TemplateName == "" {
		return ErrMissingTemplateName
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 2; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if rp.MaxDelayMs > 0 && int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the HTTP client timeout.
func (a *APIConfig) GetTimeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{BaseURL: %s, MaxAttempts: %d, Fixture: %s}",
		c.API.BaseURL,
		c.Retry.MaxAttempts,
		c.Seed.Fixture,
	)
}
