package inference

import (
	"context"
	"errors"
	"testing"
)

func TestMockProvider(t *testing.T) {
	ctx := context.Background()
	mock := NewMock("Mock response")

	req := &ChatRequest{Messages: []Message{NewUserMessage("Hello")}}
	resp, err := mock.Chat(ctx, req)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Text() != "Mock response" {
		t.Errorf("Text() = %q", resp.Text())
	}
	mock.Health(ctx)

	if mock.CallCount("Chat") != 1 || mock.CallCount("Health") != 1 {
		t.Errorf("unexpected calls: %+v", mock.Calls())
	}
	if mock.LastRequest() != req {
		t.Error("LastRequest should return the Chat request")
	}

	mock.Reset()
	if len(mock.Calls()) != 0 {
		t.Error("Expected 0 calls after reset")
	}
}

func TestMockWithError(t *testing.T) {
	boom := errors.New("boom")
	mock := WithError(boom)

	if _, err := mock.Chat(context.Background(), &ChatRequest{}); !errors.Is(err, boom) {
		t.Errorf("Chat error = %v", err)
	}
	if err := mock.Health(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Health error = %v", err)
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		NewSystemMessage("a"),
		NewUserMessage("u"),
		NewSystemMessage("b"),
		NewAssistantMessage("x"),
	})
	if len(system) != 2 || system[1] != "b" {
		t.Errorf("system = %v", system)
	}
	if len(rest) != 2 || rest[0].Role != RoleUser || rest[1].Role != RoleAssistant {
		t.Errorf("rest = %v", rest)
	}
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{401, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status, Provider: "test"}
		if err.IsRetryable() != tt.retryable {
			t.Errorf("status %d: IsRetryable() = %v", tt.status, err.IsRetryable())
		}
	}
}

func TestWrapError(t *testing.T) {
	if WrapError("x", nil) != nil {
		t.Error("WrapError(nil) should be nil")
	}
	err := WrapError("gemini", ErrNoAPIKey)
	if !errors.Is(err, ErrNoAPIKey) {
		t.Error("wrapped error should match sentinel")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Provider != "gemini" {
		t.Errorf("error = %#v", err)
	}
}
