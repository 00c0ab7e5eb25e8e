package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Package   PackageConfig
	Worker    WorkerConfig
	Execution ExecutionConfig
	Content   ContentConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// PackageConfig holds companion-package configuration.
type PackageConfig struct {
	Name       string `envconfig:"PACKAGE_NAME" default:"mastering_performant_code"`
	URL        string `envconfig:"PACKAGE_URL" default:"https://files.local/wheels/mastering_performant_code-latest-py3-none-any.whl"`
	FetchLocal bool   `envconfig:"PACKAGE_FETCH_LOCAL" default:"true"`
	RetryMax   int    `envconfig:"PACKAGE_FETCH_RETRIES" default:"3"`
}

// WorkerConfig holds the interpreter worker connection.
type WorkerConfig struct {
	// Runtime selects the interpreter adapter: "remote" (Python worker)
	// or "goja" (embedded JavaScript VM).
	Runtime string        `envconfig:"WORKER_RUNTIME" default:"remote"`
	Address string        `envconfig:"WORKER_ADDR" default:"http://localhost:8701"`
	Timeout time.Duration `envconfig:"WORKER_TIMEOUT" default:"60s"`
}

// ExecutionConfig holds execution engine defaults.
type ExecutionConfig struct {
	TimeoutMs          int  `envconfig:"EXEC_TIMEOUT_MS" default:"30000"`
	CaptureOutput      bool `envconfig:"EXEC_CAPTURE_OUTPUT" default:"true"`
	MeasurePerformance bool `envconfig:"EXEC_MEASURE_PERF" default:"true"`
}

// ContentConfig holds chapter-content loading configuration.
type ContentConfig struct {
	// Dir points at a generated-content tree on disk; empty disables the
	// directory loader.
	Dir string `envconfig:"CONTENT_DIR" default:""`
	// BaseURL points at a content server; used when Dir is empty.
	BaseURL string `envconfig:"CONTENT_BASE_URL" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Package: PackageConfig{
			Name:       "mastering_performant_code",
			URL:        "https://files.local/wheels/mastering_performant_code-latest-py3-none-any.whl",
			FetchLocal: true,
			RetryMax:   3,
		},
		Worker: WorkerConfig{
			Runtime: "remote",
			Address: "http://localhost:8701",
			Timeout: 60 * time.Second,
		},
		Execution: ExecutionConfig{
			TimeoutMs:          30000,
			CaptureOutput:      true,
			MeasurePerformance: true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}
