package llm

import (
	"net/http"
	"strings"
	"time"

	"github.com/MimeLyc/sonomancer/internal/apperr"
)

// Config points the client at an OpenAI-compatible chat completions endpoint
// (OpenAI, OpenRouter, local gateways).
type Config struct {
	APIKey      string
	APIURL      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// SiteURL and AppName are sent as OpenRouter attribution headers when set.
	SiteURL string
	AppName string
}

// Validate reports every missing or out-of-range field as one config error.
func (c *Config) Validate() error {
	var problems []string
	if c.APIKey == "" {
		problems = append(problems, "API key is required")
	}
	if c.APIURL == "" {
		problems = append(problems, "API URL is required")
	}
	if c.Model == "" {
		problems = append(problems, "model is required")
	}
	if c.MaxTokens < 1 {
		problems = append(problems, "max tokens must be greater than 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		problems = append(problems, "temperature must be between 0 and 2")
	}
	if c.Timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if len(problems) > 0 {
		return apperr.New(apperr.ErrConfig, "invalid llm configuration").
			WithContext("problems", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) applyHeaders(h http.Header) {
	h.Set("Authorization", "Bearer "+c.APIKey)
	h.Set("Content-Type", "application/json")
	if c.SiteURL != "" {
		h.Set("HTTP-Referer", c.SiteURL)
	}
	if c.AppName != "" {
		h.Set("X-Title", c.AppName)
	}
}
