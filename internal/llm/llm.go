// Package llm adapts generative text services to a single Generator contract.
//
// A Generator takes a system prompt, a user prompt and an output shape hint,
// and returns raw text plus token usage. Callers own parsing and validation;
// nothing here retries on malformed output, only on transport failures.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

var (
	// ErrNoAPIKey is returned when a provider is selected without credentials.
	ErrNoAPIKey = errors.New("llm: API key not configured")
	// ErrEmptyResponse is returned when the service answers with no content.
	ErrEmptyResponse = errors.New("llm: empty response")
	// ErrMalformedResponse wraps answers that arrived but could not be read.
	ErrMalformedResponse = errors.New("llm: malformed response")
)

// Request is one generation call.
type Request struct {
	// Stage labels the call for logs and history (e.g. "pseudocode").
	Stage       string
	System      string
	User        string
	Temperature float64
	// JSON asks the service for a JSON object response when it supports it.
	JSON bool
	// Model overrides the client's default model when non-empty.
	Model string
}

// Usage counts tokens for one or more calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// Response is the raw result of a generation call.
type Response struct {
	Text     string
	Usage    Usage
	Model    string
	Duration time.Duration
}

// Generator is the generative text service.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// New builds the Generator for cfg.Provider.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Generator, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIClient(cfg, logger)
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// APIError is a non-success HTTP answer from the service.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: API request failed with status %d: %s", e.Status, e.Body)
}

// permanent reports errors that a resend cannot fix: the service answered,
// just not usefully.
func permanent(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Retryable()
	}
	return errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrMalformedResponse)
}

// Retryable reports whether the status is worth retrying.
func (e *APIError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// backoff sleeps for attempt's delay or until ctx ends.
func backoff(ctx context.Context, attempt int) error {
	if attempt == 0 {
		return nil
	}
	d := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
