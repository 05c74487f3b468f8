package mood

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"

	"github.com/MimeLyc/sonomancer/internal/apperr"
	"github.com/MimeLyc/sonomancer/internal/excerpt"
	"github.com/MimeLyc/sonomancer/internal/llm"
	"github.com/MimeLyc/sonomancer/pkg/log"
)

var logger = log.Component("mood")

const (
	maxAttempts        = 2
	defaultTimeout     = 30 * time.Second
	defaultRetryDelay  = 250 * time.Millisecond
	defaultMaxTokens   = 200
	defaultTemperature = 0.3
)

// ChatClient is the slice of llm.Client the classifier needs.
type ChatClient interface {
	Complete(ctx context.Context, p llm.Prompt) (string, error)
}

type Classifier struct {
	client      ChatClient
	timeout     time.Duration
	retryDelay  time.Duration
	maxTokens   int
	temperature float64
}

type Option func(*Classifier)

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetryDelay sets the pause before the single retry. Rate-limited calls wait twice as long.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Classifier) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithSampling overrides the completion length and temperature. Out-of-range values are ignored.
func WithSampling(maxTokens int, temperature float64) Option {
	return func(c *Classifier) {
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
		if temperature >= 0 && temperature <= 2 {
			c.temperature = temperature
		}
	}
}

// NewClassifier creates a classifier that calls client at most twice per chapter.
// Defaults: 30s per call, 250ms before the retry, 200 tokens at temperature 0.3.
//
// Example:
//
//	client, err := llm.NewClient(cfg)
//	if err != nil {
//		return err
//	}
//	c := mood.NewClassifier(client, mood.WithTimeout(10*time.Second))
//	result, err := c.Classify(ctx, excerpts)
func NewClassifier(client ChatClient, opts ...Option) *Classifier {
	c := &Classifier{
		client:      client,
		timeout:     defaultTimeout,
		retryDelay:  defaultRetryDelay,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify asks the model for the mood of the excerpts. A failed or unparseable
// call is retried once; the second failure is returned as an apperr.ErrClassification.
func (c *Classifier) Classify(ctx context.Context, excerpts []excerpt.Excerpt) (Classification, error) {
	text := excerpt.Join(excerpts)
	if strings.TrimSpace(text) == "" {
		logger.Warn("No readable text in excerpts, classifying as %s", Neutral)
		return Classification{
			Mood:        Neutral,
			Explanation: "The chapter has no readable text, so a neutral ambient backdrop is used.",
		}, nil
	}

	prompt := llm.Prompt{
		System:      SystemPrompt(),
		User:        BuildPrompt(text),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		JSON:        true,
	}

	var lastErr error
	attempts := 0
	for attempts < maxAttempts {
		if attempts > 0 {
			if err := c.wait(ctx, lastErr); err != nil {
				lastErr = err
				break
			}
		}
		attempts++

		result, err := c.attempt(ctx, prompt)
		if err == nil {
			logger.Info("Mood classified as %s (model said %q)", result.Mood, result.RawLabel)
			return result, nil
		}
		lastErr = err
		logger.Warn("Mood classification attempt %d/%d failed: %v", attempts, maxAttempts, err)
	}

	return Classification{}, apperr.Wrap(lastErr, apperr.ErrClassification, "mood classification failed").
		WithContext("attempts", attempts)
}

func (c *Classifier) attempt(ctx context.Context, prompt llm.Prompt) (Classification, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Complete(callCtx, prompt)
	if err != nil {
		return Classification{}, fmt.Errorf("llm call: %w", err)
	}
	logger.Debug("Raw classification output: %q", raw)

	result, err := ParseClassification(raw)
	if err != nil {
		return Classification{}, apperr.Wrap(err, apperr.ErrParse, "unparseable model output")
	}
	return result, nil
}

func (c *Classifier) wait(ctx context.Context, lastErr error) error {
	delay := c.retryDelay
	if llm.IsRateLimited(lastErr) {
		delay *= 2
	}
	if delay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SystemPrompt describes the vocabulary and the required output shape.
func SystemPrompt() string {
	moods := make([]string, 0, len(Vocabulary))
	for _, m := range Vocabulary {
		moods = append(moods, string(m))
	}
	return fmt.Sprintf(`You pick background ambience for readers of novels.
Analyze the text excerpts and classify the overall mood or atmosphere of the chapter.
Choose exactly one mood from this list: %s.
Consider the emotional tone, the setting, the level of action and the atmosphere described.
Respond with only a JSON object of the form {"mood": "<mood from the list>", "explanation": "<one or two sentences explaining why>"}.`,
		strings.Join(moods, ", "))
}

// BuildPrompt wraps the joined excerpts, naming their language when it can be detected reliably.
func BuildPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Text excerpts")
	if info := whatlanggo.Detect(text); info.IsReliable() {
		fmt.Fprintf(&b, " (written in %s; answer in English)", info.Lang.String())
	}
	b.WriteString(":\n\n")
	b.WriteString(text)
	return b.String()
}
