package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
)

const providerSDK = "openai-sdk"

// SDK implements Provider on the go-openai client. It accepts the same
// options as Client; BaseURL points it at any compatible endpoint.
type SDK struct {
	client *openai.Client
	config *Config
	logger *slog.Logger
}

// NewSDK creates a go-openai backed provider.
func NewSDK(opts ...Option) (*SDK, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerSDK, ErrNoAPIKey)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapError(providerSDK, err)
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = httpClientFor(cfg)

	return &SDK{
		client: openai.NewClientWithConfig(oc),
		config: cfg,
		logger: cfg.Logger.With("component", "inference.sdk"),
	}, nil
}

// Name returns the provider name.
func (s *SDK) Name() string { return providerSDK }

// Chat generates a chat completion.
func (s *SDK) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = s.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = s.config.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = s.config.Temperature
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: float32(temp),
		Stop:        req.Stop,
	})
	if err != nil {
		return nil, s.convertError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, WrapError(providerSDK, ErrEmptyResponse)
	}

	return &ChatResponse{
		Message:      NewAssistantMessage(resp.Choices[0].Message.Content),
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model:     resp.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Health lists models to verify the key.
func (s *SDK) Health(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return s.convertError(err)
	}
	return nil
}

// Close is a no-op; the SDK holds no resources beyond its HTTP client.
func (s *SDK) Close() error {
	return nil
}

// convertError maps go-openai errors onto APIError so callers can use
// IsRetryable regardless of provider.
func (s *SDK) convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Code:       fmt.Sprint(apiErr.Code),
			Provider:   providerSDK,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Provider:   providerSDK,
		}
	}
	return WrapError(providerSDK, err)
}

// Verify SDK implements Provider at compile time.
var _ Provider = (*SDK)(nil)
