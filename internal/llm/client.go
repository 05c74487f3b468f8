package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MimeLyc/sonomancer/pkg/log"
)

// maxErrorBody bounds how much of a failed response body is kept in errors.
const maxErrorBody = 2048

// Client sends single-turn prompts to an OpenAI-compatible endpoint.
// Safe for concurrent use.
type Client struct {
	config     Config
	endpoint   string
	httpClient *http.Client
}

func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config:     config,
		endpoint:   strings.TrimRight(config.APIURL, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Complete returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, p Prompt) (string, error) {
	resp, err := c.send(ctx, c.buildRequest(p))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion failed: no choices in response")
	}
	choice := resp.Choices[0]
	log.Debug("Completion from %s: finish=%s tokens=%d", resp.Model, choice.FinishReason, resp.Usage.TotalTokens)
	return choice.Message.Content, nil
}

func (c *Client) buildRequest(p Prompt) chatRequest {
	req := chatRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}
	if p.MaxTokens > 0 {
		req.MaxTokens = p.MaxTokens
	}
	if p.Temperature > 0 && p.Temperature <= 2 {
		req.Temperature = p.Temperature
	}
	if p.System != "" {
		req.Messages = append(req.Messages, message{Role: "system", Content: p.System})
	}
	req.Messages = append(req.Messages, message{Role: "user", Content: p.User})
	if p.JSON {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return req
}

func (c *Client) send(ctx context.Context, payload chatRequest) (*chatResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.config.applyHeaders(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed chatResponse
	parseErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
		if parseErr == nil {
			statusErr.APIError = parsed.Error
		}
		return nil, statusErr
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", parseErr)
	}
	// Some gateways report failures in a 200 body.
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, parsed.Error
	}
	return &parsed, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
