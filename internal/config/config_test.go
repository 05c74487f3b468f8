package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/sonomancer/internal/apperr"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("LLM_API_KEY", "llm-key")
	t.Setenv("YOUTUBE_API_KEY", "yt-key")
}

func TestNewFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.APIURL)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
	assert.Equal(t, 200, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 30, cfg.LLM.Timeout)

	assert.Equal(t, "https://www.googleapis.com/youtube/v3", cfg.YouTube.APIURL)
	assert.Equal(t, 15, cfg.YouTube.MaxResults)

	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "http://localhost:3000", cfg.HTTP.FrontendURL)
	assert.False(t, cfg.HTTP.UIEnabled)

	assert.Empty(t, cfg.Library.DBPath)
	assert.Equal(t, time.Duration(0), cfg.Library.Retention())

	assert.Equal(t, 10*time.Minute, cfg.Ambience.MinDuration())
	tmin, tmax, maxDur := cfg.Ambience.TargetWindow()
	assert.Equal(t, time.Hour, tmin)
	assert.Equal(t, 3*time.Hour, tmax)
	assert.Equal(t, 12*time.Hour, maxDur)
	assert.Equal(t, 250*time.Millisecond, cfg.Ambience.RetryDelay())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestNewFromEnv_OpenAIFallback(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("YOUTUBE_API_KEY", "yt-key")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "openai-key", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestNewFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LLM_MODEL", "openai/gpt-4o")
	t.Setenv("YOUTUBE_MAX_RESULTS", "25")
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("UI_STATIC_DIR", "/app/web")
	t.Setenv("LIBRARY_RETENTION_HOURS", "48")
	t.Setenv("LIBRARY_PRUNE_CRON", "@daily")
	t.Setenv("AMBIENCE_EXCERPT_JITTER", "0.1")
	t.Setenv("AMBIENCE_MIN_DURATION_MINUTES", "not-a-number")

	cfg, err := NewFromEnv(WithLibraryDBPath("/tmp/library.db"))
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 25, cfg.YouTube.MaxResults)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.True(t, cfg.HTTP.UIEnabled)
	assert.Equal(t, 48*time.Hour, cfg.Library.Retention())
	assert.Equal(t, "/tmp/library.db", cfg.Library.DBPath)
	assert.InDelta(t, 0.1, cfg.Ambience.ExcerptJitter, 1e-9)
	assert.Equal(t, 10, cfg.Ambience.MinDurationMinutes, "unparseable values keep the default")
}

func TestNewFromEnv_RequiresKeys(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("YOUTUBE_API_KEY", "")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.ErrConfig))
	assert.Contains(t, err.Error(), "LLM_API_KEY is required")
	assert.Contains(t, err.Error(), "YOUTUBE_API_KEY is required")

	_, err = NewFromEnv(WithLLMAPIKey("a"), WithYouTubeAPIKey("b"))
	assert.NoError(t, err)
}

func TestNewFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"window out of order", map[string]string{"AMBIENCE_TARGET_MIN_MINUTES": "200"}, "ambience durations"},
		{"min above window", map[string]string{"AMBIENCE_MIN_DURATION_MINUTES": "90"}, "ambience durations"},
		{"max below window", map[string]string{"AMBIENCE_MAX_DURATION_HOURS": "2"}, "ambience durations"},
		{"jitter", map[string]string{"AMBIENCE_EXCERPT_JITTER": "0.9"}, "AMBIENCE_EXCERPT_JITTER"},
		{"max results", map[string]string{"YOUTUBE_MAX_RESULTS": "0"}, "YOUTUBE_MAX_RESULTS"},
		{"timeout", map[string]string{"LLM_TIMEOUT": "0"}, "timeouts"},
		{"cron", map[string]string{"LIBRARY_RETENTION_HOURS": "1", "LIBRARY_PRUNE_CRON": "sometimes"}, "LIBRARY_PRUNE_CRON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewFromEnv_CronIgnoredWithoutRetention(t *testing.T) {
	setRequired(t)
	t.Setenv("LIBRARY_PRUNE_CRON", "sometimes")

	_, err := NewFromEnv()
	assert.NoError(t, err)
}

func TestConfig_Redacted(t *testing.T) {
	setRequired(t)
	cfg, err := NewFromEnv()
	require.NoError(t, err)

	printed := fmt.Sprintf("%+v", cfg.Redacted())
	assert.NotContains(t, printed, "llm-key")
	assert.NotContains(t, printed, "yt-key")
	assert.Equal(t, "llm-key", cfg.LLM.APIKey)

	client := cfg.LLM.ClientConfig()
	assert.Equal(t, "llm-key", client.APIKey)
	assert.NoError(t, client.Validate())
}
