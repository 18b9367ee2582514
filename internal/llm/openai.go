package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultOpenAIBaseURL is used when Config.BaseURL is empty.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	httpClient *http.Client
	logger     *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIClient creates a client from cfg.
func NewOpenAIClient(cfg Config, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      cfg.Model,
		maxRetries: max(cfg.MaxRetries, 0),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("openai"),
	}, nil
}

// Generate sends one chat completion. Transport failures, 429 and 5xx
// answers are retried with exponential backoff. Other statuses and empty or
// unreadable answers are returned at once.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("llm: marshal request: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := backoff(ctx, attempt); err != nil {
			return Response{}, err
		}

		resp, err := c.do(ctx, payload)
		if err == nil {
			resp.Duration = time.Since(start)
			c.logger.Debug("completion",
				zap.String("stage", req.Stage),
				zap.String("model", resp.Model),
				zap.Int("total_tokens", resp.Usage.TotalTokens),
				zap.Duration("duration", resp.Duration))
			return resp, nil
		}
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}

		if permanent(err) {
			return Response{}, err
		}
		lastErr = err
		c.logger.Warn("completion failed, retrying",
			zap.String("stage", req.Stage),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return Response{}, fmt.Errorf("llm: max retries exceeded: %w", lastErr)
}

func (c *OpenAIClient) do(ctx context.Context, payload []byte) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("llm: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("llm: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("llm: read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return Response{}, &APIError{Status: httpResp.StatusCode, Body: string(raw)}
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if cr.Error != nil {
		return Response{}, fmt.Errorf("%w: API error: %s", ErrMalformedResponse, cr.Error.Message)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return Response{}, ErrEmptyResponse
	}
	return Response{
		Text:  cr.Choices[0].Message.Content,
		Usage: cr.Usage,
		Model: cr.Model,
	}, nil
}
