package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all application configuration.
// Every field is backed by an environment variable with a sensible default.
//
// Environment Variables:
//
// Gateway (abstract speech/translation provider endpoint):
// - GATEWAY_API_URL: base URL of the AI gateway (default: http://localhost:9090/v1)
// - GATEWAY_API_KEY: API key sent as a bearer token (required)
// - GATEWAY_TIMEOUT: request timeout in seconds (default: 60)
//
// HTTP / storage:
// - HTTP_ADDR: listen address (default: :8080)
// - DATA_DIR: artifact + database directory (default: /data)
// - PUBLIC_BASE_URL: external URL prefix for stored files (default: http://localhost:8080)
//
// Synthesis:
// - CHUNK_SIZE: maximum characters per synthesis request (default: 4000)
// - CHUNK_DELAY_MS: pause between per-chunk synthesis calls (default: 200)
// - DEFAULT_VOICE: fallback voice id (default: nova)
// - SPEECH_SPEED: narration speed multiplier (default: 0.9)
//
// Translation:
// - SOURCE_LANGUAGE: declared source language; empty means detect from text
// - RATE_LIMIT_MAX_CALLS: outbound calls allowed per window (default: 50)
// - RATE_LIMIT_WINDOW_MS: sliding window size (default: 60000)
// - CACHE_TTL_HOURS: translation cache TTL (default: 24)
// - CACHE_MAX_ENTRIES: translation cache capacity (default: 1000)
//
// Jobs:
// - WORKER_COUNT: concurrent pipeline workers (default: 1)
// - MAX_RETRIES: per-language retry budget (default: 2)
//
// Streaming / callbacks:
// - STREAM_POLL_INTERVAL_MS: status poll interval for subscribers (default: 2000)
// - CALLBACK_TIMEOUT: webhook delivery timeout in seconds (default: 5)
//
// Integrity verification:
// - VERIFY_CRON_EXPR: verification schedule (default: "0 3 * * *")
// - VERIFY_BATCH_SIZE: max records per run (default: 100)
// - VERIFY_RECHECK_HOURS: re-verify records older than this (default: 24)
// - ALERT_WEBHOOK_URL: mismatch alert endpoint (optional)

type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Gateway   GatewayConfig   `json:"gateway"`
	Synthesis SynthesisConfig `json:"synthesis"`
	Translate TranslateConfig `json:"translate"`
	Jobs      JobsConfig      `json:"jobs"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Verify    VerifyConfig    `json:"verify"`
}

type HTTPConfig struct {
	Addr          string `json:"addr"`
	DataDir       string `json:"data_dir"`
	PublicBaseURL string `json:"public_base_url"`
}

// DBPath returns the SQLite database location inside the data directory.
func (c HTTPConfig) DBPath() string {
	return filepath.Join(c.DataDir, "audiogen.db")
}

// GatewayConfig points at the AI gateway that fronts the speech-synthesis and
// translation providers. The concrete provider behind it is not our concern.
type GatewayConfig struct {
	APIURL  string `json:"api_url"`
	APIKey  string `json:"api_key"`
	Timeout int    `json:"timeout"`
}

type SynthesisConfig struct {
	ChunkSize    int           `json:"chunk_size"`
	ChunkDelay   time.Duration `json:"chunk_delay"`
	DefaultVoice string        `json:"default_voice"`
	Speed        float64       `json:"speed"`
}

type TranslateConfig struct {
	SourceLanguage string        `json:"source_language"`
	MaxCalls       int           `json:"max_calls"`
	Window         time.Duration `json:"window"`
	CacheTTL       time.Duration `json:"cache_ttl"`
	CacheMaxSize   int           `json:"cache_max_size"`
}

type JobsConfig struct {
	WorkerCount int `json:"worker_count"`
	MaxRetries  int `json:"max_retries"`
}

type BroadcastConfig struct {
	PollInterval    time.Duration `json:"poll_interval"`
	CallbackTimeout time.Duration `json:"callback_timeout"`
}

type VerifyConfig struct {
	CronExpr     string        `json:"cron_expr"`
	BatchSize    int           `json:"batch_size"`
	RecheckAfter time.Duration `json:"recheck_after"`
	AlertURL     string        `json:"alert_url"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		HTTP: HTTPConfig{
			Addr:          getEnvString("HTTP_ADDR", ":8080"),
			DataDir:       getEnvString("DATA_DIR", "/data"),
			PublicBaseURL: getEnvString("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Gateway: GatewayConfig{
			APIURL:  getEnvString("GATEWAY_API_URL", "http://localhost:9090/v1"),
			APIKey:  getEnvString("GATEWAY_API_KEY", ""),
			Timeout: getEnvInt("GATEWAY_TIMEOUT", 60),
		},
		Synthesis: SynthesisConfig{
			ChunkSize:    getEnvInt("CHUNK_SIZE", 4000),
			ChunkDelay:   time.Duration(getEnvInt("CHUNK_DELAY_MS", 200)) * time.Millisecond,
			DefaultVoice: getEnvString("DEFAULT_VOICE", "nova"),
			Speed:        getEnvFloat("SPEECH_SPEED", 0.9),
		},
		Translate: TranslateConfig{
			SourceLanguage: getEnvString("SOURCE_LANGUAGE", ""),
			MaxCalls:       getEnvInt("RATE_LIMIT_MAX_CALLS", 50),
			Window:         time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MS", 60000)) * time.Millisecond,
			CacheTTL:       time.Duration(getEnvInt("CACHE_TTL_HOURS", 24)) * time.Hour,
			CacheMaxSize:   getEnvInt("CACHE_MAX_ENTRIES", 1000),
		},
		Jobs: JobsConfig{
			WorkerCount: getEnvInt("WORKER_COUNT", 1),
			MaxRetries:  getEnvInt("MAX_RETRIES", 2),
		},
		Broadcast: BroadcastConfig{
			PollInterval:    time.Duration(getEnvInt("STREAM_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
			CallbackTimeout: time.Duration(getEnvInt("CALLBACK_TIMEOUT", 5)) * time.Second,
		},
		Verify: VerifyConfig{
			CronExpr:     getEnvString("VERIFY_CRON_EXPR", "0 3 * * *"),
			BatchSize:    getEnvInt("VERIFY_BATCH_SIZE", 100),
			RecheckAfter: time.Duration(getEnvInt("VERIFY_RECHECK_HOURS", 24)) * time.Hour,
			AlertURL:     getEnvString("ALERT_WEBHOOK_URL", ""),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Gateway.APIKey == "" {
		return fmt.Errorf("GATEWAY_API_KEY is required")
	}
	if c.Synthesis.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive")
	}
	if c.Translate.MaxCalls <= 0 || c.Translate.Window <= 0 {
		return fmt.Errorf("rate limiter settings must be positive")
	}
	if _, err := cron.ParseStandard(c.Verify.CronExpr); err != nil {
		return fmt.Errorf("invalid VERIFY_CRON_EXPR: %w", err)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
