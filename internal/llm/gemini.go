package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when Config.Model is empty.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient generates text through the Google GenAI SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGeminiClient creates a client from cfg.
func NewGeminiClient(ctx context.Context, cfg Config, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, model: model, timeout: cfg.Timeout, logger: logger.Named("gemini")}, nil
}

// Generate sends one GenerateContent call.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" || !strings.HasPrefix(model, "gemini") {
		model = c.model
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.User), cfg)
	if err != nil {
		return Response{}, fmt.Errorf("llm: GenAI generate failed: %w", err)
	}
	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return Response{}, ErrEmptyResponse
	}

	resp := Response{Text: text, Model: model, Duration: time.Since(start)}
	if u := result.UsageMetadata; u != nil {
		resp.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	c.logger.Debug("completion",
		zap.String("stage", req.Stage),
		zap.String("model", model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", resp.Duration))
	return resp, nil
}
