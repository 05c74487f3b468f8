package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/sonomancer/internal/apperr"
	"github.com/MimeLyc/sonomancer/internal/llm"
	"github.com/MimeLyc/sonomancer/pkg/icron"
	"github.com/MimeLyc/sonomancer/pkg/log"
)

// Config holds all application configuration.
// Values come from environment variables with sensible defaults.
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required, falls back to OPENAI_API_KEY)
// - LLM_API_URL: API endpoint URL (default: https://api.openai.com/v1)
// - LLM_MODEL: Model name to use (default: gpt-3.5-turbo, falls back to OPENAI_MODEL)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 200)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.3)
// - LLM_TIMEOUT: Request timeout in seconds (default: 30)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// YouTube Configuration:
// - YOUTUBE_API_KEY: YouTube Data API key (required)
// - YOUTUBE_API_URL: API base URL (default: https://www.googleapis.com/youtube/v3)
// - YOUTUBE_MAX_RESULTS: Candidates requested per search (default: 15)
// - YOUTUBE_TIMEOUT: Request timeout in seconds (default: 15)
//
// HTTP Configuration:
// - HTTP_ADDR: Listen address (default: :8000)
// - FRONTEND_URL: Allowed CORS origin (default: http://localhost:3000)
// - UI_STATIC_DIR: Built reader frontend to serve at / (default: empty, disabled)
//
// Library Configuration:
// - LIBRARY_DB_PATH: SQLite file for ingested books (default: empty, books kept in memory)
// - LIBRARY_RETENTION_HOURS: Delete books older than this (default: 0, disabled)
// - LIBRARY_PRUNE_CRON: Prune schedule (default: 0 * * * *)
//
// Ambience Configuration:
// - AMBIENCE_MIN_DURATION_MINUTES: Shortest acceptable video (default: 10)
// - AMBIENCE_TARGET_MIN_MINUTES / AMBIENCE_TARGET_MAX_MINUTES: Preferred duration window (default: 60 / 180)
// - AMBIENCE_MAX_DURATION_HOURS: Videos longer than this rank last (default: 12)
// - AMBIENCE_EXCERPT_JITTER: Random shift of excerpt positions, 0 keeps them fixed (default: 0)
// - AMBIENCE_CLASSIFY_RETRY_DELAY_MS: Pause before the classification retry (default: 250)
// - AMBIENCE_PIPELINE_TIMEOUT: Upper bound for one resolution in seconds (default: 90)
//
// - LOG_LEVEL: debug, info, warn, error (default: info)
type Config struct {
	LLM      LLMConfig      `json:"llm"`
	YouTube  YouTubeConfig  `json:"youtube"`
	HTTP     HTTPConfig     `json:"http"`
	Library  LibraryConfig  `json:"library"`
	Ambience AmbienceConfig `json:"ambience"`
	LogLevel string         `json:"log_level"`
}

// LLMConfig holds the configuration for the LLM client.
// Any OpenAI-compatible provider works (OpenAI, OpenRouter, local gateways).
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

func (c LLMConfig) ClientConfig() llm.Config {
	return llm.Config{
		APIKey:      c.APIKey,
		APIURL:      c.APIURL,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Timeout:     time.Duration(c.Timeout) * time.Second,
		SiteURL:     c.SiteURL,
		AppName:     c.AppName,
	}
}

type YouTubeConfig struct {
	APIKey     string `json:"api_key"`
	APIURL     string `json:"api_url"`
	MaxResults int    `json:"max_results"`
	Timeout    int    `json:"timeout"`
}

type HTTPConfig struct {
	Addr        string `json:"addr"`
	FrontendURL string `json:"frontend_url"`
	UIStaticDir string `json:"ui_static_dir"`
	UIEnabled   bool   `json:"ui_enabled"`
}

type LibraryConfig struct {
	DBPath         string `json:"db_path"`
	RetentionHours int    `json:"retention_hours"`
	PruneCron      string `json:"prune_cron"`
}

func (c LibraryConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

type AmbienceConfig struct {
	MinDurationMinutes   int     `json:"min_duration_minutes"`
	TargetMinMinutes     int     `json:"target_min_minutes"`
	TargetMaxMinutes     int     `json:"target_max_minutes"`
	MaxDurationHours     int     `json:"max_duration_hours"`
	ExcerptJitter        float64 `json:"excerpt_jitter"`
	ClassifyRetryDelayMs int     `json:"classify_retry_delay_ms"`
	PipelineTimeout      int     `json:"pipeline_timeout"`
}

func (c AmbienceConfig) MinDuration() time.Duration {
	return time.Duration(c.MinDurationMinutes) * time.Minute
}

func (c AmbienceConfig) TargetWindow() (time.Duration, time.Duration, time.Duration) {
	return time.Duration(c.TargetMinMinutes) * time.Minute,
		time.Duration(c.TargetMaxMinutes) * time.Minute,
		time.Duration(c.MaxDurationHours) * time.Hour
}

func (c AmbienceConfig) RetryDelay() time.Duration {
	return time.Duration(c.ClassifyRetryDelayMs) * time.Millisecond
}

// Option is a function type for configuring Config
type Option func(*Config)

func WithLLMAPIKey(key string) Option {
	return func(c *Config) {
		c.LLM.APIKey = key
	}
}

func WithYouTubeAPIKey(key string) Option {
	return func(c *Config) {
		c.YouTube.APIKey = key
	}
}

func WithLibraryDBPath(path string) Option {
	return func(c *Config) {
		c.Library.DBPath = path
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", getEnvString("OPENAI_API_KEY", "")),
			APIURL:      getEnvString("LLM_API_URL", "https://api.openai.com/v1"),
			Model:       getEnvString("LLM_MODEL", getEnvString("OPENAI_MODEL", "gpt-3.5-turbo")),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 200),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 30),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", ""),
		},
		YouTube: YouTubeConfig{
			APIKey:     getEnvString("YOUTUBE_API_KEY", ""),
			APIURL:     getEnvString("YOUTUBE_API_URL", "https://www.googleapis.com/youtube/v3"),
			MaxResults: getEnvInt("YOUTUBE_MAX_RESULTS", 15),
			Timeout:    getEnvInt("YOUTUBE_TIMEOUT", 15),
		},
		HTTP: HTTPConfig{
			Addr:        getEnvString("HTTP_ADDR", ":8000"),
			FrontendURL: getEnvString("FRONTEND_URL", "http://localhost:3000"),
			UIStaticDir: getEnvString("UI_STATIC_DIR", ""),
		},
		Library: LibraryConfig{
			DBPath:         getEnvString("LIBRARY_DB_PATH", ""),
			RetentionHours: getEnvInt("LIBRARY_RETENTION_HOURS", 0),
			PruneCron:      getEnvString("LIBRARY_PRUNE_CRON", "0 * * * *"),
		},
		Ambience: AmbienceConfig{
			MinDurationMinutes:   getEnvInt("AMBIENCE_MIN_DURATION_MINUTES", 10),
			TargetMinMinutes:     getEnvInt("AMBIENCE_TARGET_MIN_MINUTES", 60),
			TargetMaxMinutes:     getEnvInt("AMBIENCE_TARGET_MAX_MINUTES", 180),
			MaxDurationHours:     getEnvInt("AMBIENCE_MAX_DURATION_HOURS", 12),
			ExcerptJitter:        getEnvFloat("AMBIENCE_EXCERPT_JITTER", 0),
			ClassifyRetryDelayMs: getEnvInt("AMBIENCE_CLASSIFY_RETRY_DELAY_MS", 250),
			PipelineTimeout:      getEnvInt("AMBIENCE_PIPELINE_TIMEOUT", 90),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}
	config.HTTP.UIEnabled = config.HTTP.UIStaticDir != ""

	log.Info("Config: %+v", config.Redacted())

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Redacted returns a copy that is safe to log.
func (c Config) Redacted() Config {
	c.LLM.APIKey = redact(c.LLM.APIKey)
	c.YouTube.APIKey = redact(c.YouTube.APIKey)
	return c
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	var problems []string
	if c.LLM.APIKey == "" {
		problems = append(problems, "LLM_API_KEY is required")
	}
	if c.YouTube.APIKey == "" {
		problems = append(problems, "YOUTUBE_API_KEY is required")
	}
	if c.LLM.Timeout < 1 || c.YouTube.Timeout < 1 || c.Ambience.PipelineTimeout < 1 {
		problems = append(problems, "timeouts must be positive")
	}
	if c.YouTube.MaxResults < 1 || c.YouTube.MaxResults > 50 {
		problems = append(problems, "YOUTUBE_MAX_RESULTS must be between 1 and 50")
	}

	a := c.Ambience
	if a.MinDurationMinutes < 0 || a.TargetMinMinutes < 1 ||
		a.MinDurationMinutes > a.TargetMinMinutes ||
		a.TargetMinMinutes > a.TargetMaxMinutes ||
		time.Duration(a.TargetMaxMinutes)*time.Minute > time.Duration(a.MaxDurationHours)*time.Hour {
		problems = append(problems, "ambience durations must satisfy min <= target min <= target max <= max")
	}
	if a.ExcerptJitter < 0 || a.ExcerptJitter > 0.5 {
		problems = append(problems, "AMBIENCE_EXCERPT_JITTER must be between 0 and 0.5")
	}
	if a.ClassifyRetryDelayMs < 0 {
		problems = append(problems, "AMBIENCE_CLASSIFY_RETRY_DELAY_MS must not be negative")
	}

	if c.Library.RetentionHours < 0 {
		problems = append(problems, "LIBRARY_RETENTION_HOURS must not be negative")
	}
	if c.Library.RetentionHours > 0 {
		if _, err := icron.Parse(c.Library.PruneCron); err != nil {
			problems = append(problems, fmt.Sprintf("LIBRARY_PRUNE_CRON: %v", err))
		}
	}

	if len(problems) > 0 {
		return apperr.New(apperr.ErrConfig, strings.Join(problems, "; "))
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
