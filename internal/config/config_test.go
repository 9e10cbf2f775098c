package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Helper to create a temp config file.
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

const validConfigYAML = `
api:
  base_url: "http://blog.example.com:8080"
  timeout_sec: 5
  payload_encoding: "form"
retry:
  max_attempts: 4
  initial_delay_ms: 100
  max_delay_ms: 1000
  backoff_multiplier: 2.0
seed:
  fixture: "./fixtures/articles.json"
  max_rounds: 2
  concurrency: 2
render:
  template_name: "article-template"
  sanitize: true
logging:
  level: "debug"
  format: "json"
`

func TestLoadConfig_Valid(t *testing.T) {
	configPath := createTempConfigFile(t, validConfigYAML)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.API.BaseURL != "http://blog.example.com:8080" {
		t.Errorf("Expected base URL from file, got %q", cfg.API.BaseURL)
	}

	if cfg.API.PayloadEncoding != EncodingForm {
		t.Errorf("Expected form encoding, got %q", cfg.API.PayloadEncoding)
	}

	if cfg.Retry.MaxAttempts != 4 {
		t.Errorf("Expected MaxAttempts 4, got %d", cfg.Retry.MaxAttempts)
	}

	if !cfg.Render.Sanitize {
		t.Error("Expected sanitize to be enabled")
	}

	// Values missing from the file keep their defaults.
	if cfg.API.UserAgent != "blog-client/1.0" {
		t.Errorf("Expected default user agent, got %q", cfg.API.UserAgent)
	}

	if cfg.Seed.Burst != 5 {
		t.Errorf("Expected default burst 5, got %d", cfg.Seed.Burst)
	}
}

func TestLoadConfig_NoFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.API.BaseURL != Default().API.BaseURL {
		t.Errorf("Expected default base URL, got %q", cfg.API.BaseURL)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BLOG_API_BASE_URL", "https://override.example.com")
	t.Setenv("BLOG_SEED_MAX_ROUNDS", "7")
	t.Setenv("BLOG_LOG_LEVEL", "warn")

	configPath := createTempConfigFile(t, validConfigYAML)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.API.BaseURL != "https://override.example.com" {
		t.Errorf("Expected env base URL, got %q", cfg.API.BaseURL)
	}

	if cfg.Seed.MaxRounds != 7 {
		t.Errorf("Expected MaxRounds 7, got %d", cfg.Seed.MaxRounds)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected level warn, got %q", cfg.Logging.Level)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Expected error for nonexistent file, got nil")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := createTempConfigFile(t, "invalid: yaml: content: [}")

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid YAML, got nil")
	}
}

func TestConfig_Validate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, ErrMissingBaseURL},
		{"relative base url", func(c *Config) { c.API.BaseURL = "/articles" }, ErrInvalidBaseURL},
		{"ftp base url", func(c *Config) { c.API.BaseURL = "ftp://host" }, ErrInvalidBaseURL},
		{"zero timeout", func(c *Config) { c.API.TimeoutSec = 0 }, ErrInvalidTimeout},
		{"bad encoding", func(c *Config) { c.API.PayloadEncoding = "xml" }, ErrInvalidPayloadEncoding},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, ErrInvalidMaxAttempts},
		{"negative delay", func(c *Config) { c.Retry.InitialDelayMs = -1 }, ErrInvalidInitialDelay},
		{"multiplier below one", func(c *Config) { c.Retry.BackoffMultiplier = 0.5 }, ErrInvalidBackoffMultiplier},
		{"missing fixture", func(c *Config) { c.Seed.Fixture = "" }, ErrMissingFixture},
		{"zero rounds", func(c *Config) { c.Seed.MaxRounds = 0 }, ErrInvalidMaxRounds},
		{"zero concurrency", func(c *Config) { c.Seed.Concurrency = 0 }, ErrInvalidConcurrency},
		{"negative rate", func(c *Config) { c.Seed.RatePerSec = -1 }, ErrInvalidRate},
		{"missing template", func(c *Config) { c.Render.TemplateName = "" }, ErrMissingTemplateName},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_Default(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestRetryPolicy_GetRetryDelay(t *testing.T) {
	rp := RetryPolicy{
		MaxAttempts:       5,
		InitialDelayMs:    100,
		MaxDelayMs:        350,
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 0},
		{2, 100 * time.Millisecond},
		{3, 200 * time.Millisecond},
		{4, 350 * time.Millisecond},
		{5, 350 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := rp.GetRetryDelay(tt.attempt); got != tt.want {
			t.Errorf("GetRetryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestConfig_SaveAndLoad(t *testing.T) {
	cfg := Default()
	cfg.API.BaseURL = "http://saved.example.com"

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.API.BaseURL != "http://saved.example.com" {
		t.Errorf("Expected saved base URL, got %q", loaded.API.BaseURL)
	}
}
