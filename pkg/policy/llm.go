package policy

import (
	"context"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-interview/pkg/inference"
	"github.com/teslashibe/go-interview/pkg/transcript"
)

// Generation defaults for interviewer replies.
const (
	DefaultTemperature = 0.6
	DefaultMaxTokens   = 120
)

// LLM is a Client backed by a chat completion provider.
type LLM struct {
	provider    inference.Provider
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// LLMOption configures an LLM.
type LLMOption func(*LLM)

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) LLMOption {
	return func(l *LLM) { l.temperature = t }
}

// WithMaxTokens overrides the reply length limit.
func WithMaxTokens(n int) LLMOption {
	return func(l *LLM) { l.maxTokens = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LLMOption {
	return func(l *LLM) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLLM wraps provider as a policy client.
func NewLLM(provider inference.Provider, opts ...LLMOption) *LLM {
	l := &LLM{
		provider:    provider,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "policy.llm")
	return l
}

// NextUtterance asks the provider for the interviewer's next line.
func (l *LLM) NextUtterance(ctx context.Context, ictx Context, history []transcript.Turn, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", InvalidInput("input is empty")
	}
	if l.provider == nil {
		return "", Unavailable(inference.ErrProviderUnavailable)
	}

	stage := StageFor(history)
	resp, err := l.provider.Chat(ctx, &inference.ChatRequest{
		Messages:    BuildMessages(ictx, stage, history, input),
		MaxTokens:   l.maxTokens,
		Temperature: l.temperature,
	})
	if err != nil {
		l.logger.Warn("provider failed", "provider", l.provider.Name(), "error", err)
		return "", Unavailable(err)
	}

	text := CleanResponse(resp.Text())
	if text == "" {
		return "", &Error{Kind: KindUnavailable, Message: "empty response", Err: inference.ErrEmptyResponse}
	}

	l.logger.Debug("next utterance",
		"stage", stage,
		"silence", input == SilenceMarker,
		"latency_ms", resp.LatencyMs,
	)
	return text, nil
}

// BuildMessages maps the transcript onto chat roles: system turns become
// assistant messages and human turns user messages. The input follows as the
// final user message.
func BuildMessages(ictx Context, stage Stage, history []transcript.Turn, input string) []inference.Message {
	msgs := make([]inference.Message, 0, len(history)+2)
	msgs = append(msgs, inference.NewSystemMessage(BuildPrompt(ictx, stage, input)))
	for _, t := range history {
		if t.Speaker == transcript.SpeakerHuman {
			msgs = append(msgs, inference.NewUserMessage(t.Text))
		} else {
			msgs = append(msgs, inference.NewAssistantMessage(t.Text))
		}
	}
	return append(msgs, inference.NewUserMessage(input))
}

var _ Client = (*LLM)(nil)
