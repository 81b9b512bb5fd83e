package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("missing key param")
		}

		var body struct {
			Contents []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			SystemInstruction struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"systemInstruction"`
			GenerationConfig struct {
				Temperature     float64 `json:"temperature"`
				MaxOutputTokens int     `json:"maxOutputTokens"`
			} `json:"generationConfig"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		if len(body.Contents) != 2 || body.Contents[1].Role != "model" {
			t.Errorf("unexpected contents: %+v", body.Contents)
		}
		if len(body.SystemInstruction.Parts) != 1 || body.SystemInstruction.Parts[0].Text != "Be an interviewer." {
			t.Errorf("system instruction not sent: %+v", body.SystemInstruction)
		}
		if body.GenerationConfig.MaxOutputTokens != 120 || body.GenerationConfig.Temperature != 0.6 {
			t.Errorf("unexpected generation config: %+v", body.GenerationConfig)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{{
				"content":      map[string]interface{}{"parts": []map[string]string{{"text": "What drew you "}, {"text": "to Go?"}}},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]int{"promptTokenCount": 12, "candidatesTokenCount": 6, "totalTokenCount": 18},
		})
	}))
	defer server.Close()

	g, err := NewGemini(WithAPIKey("g-key"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}

	resp, err := g.Chat(context.Background(), &ChatRequest{Messages: []Message{
		NewSystemMessage("Be an interviewer."),
		NewUserMessage("Hi, I'm Sam."),
		NewAssistantMessage("Welcome Sam."),
	}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Text() != "What drew you to Go?" {
		t.Errorf("Text() = %q", resp.Text())
	}
	if resp.Usage.TotalTokens != 18 {
		t.Errorf("TotalTokens = %d", resp.Usage.TotalTokens)
	}
}

func TestGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("error = %v, want ErrNoAPIKey", err)
	}
}

func TestGeminiErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   interface{}
		check  func(t *testing.T, err error)
	}{
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			body:   map[string]interface{}{"error": map[string]interface{}{"message": "API key not valid", "code": 400}},
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.Message != "API key not valid" || apiErr.IsRetryable() {
					t.Errorf("error = %#v", err)
				}
			},
		},
		{
			name:   "no candidates",
			status: http.StatusOK,
			body:   map[string]interface{}{"candidates": []interface{}{}},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrEmptyResponse) {
					t.Errorf("error = %v, want ErrEmptyResponse", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			g, _ := NewGemini(WithAPIKey("k"), WithBaseURL(server.URL), WithRetry(0, 0))
			_, err := g.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}})
			tt.check(t, err)
		})
	}
}
