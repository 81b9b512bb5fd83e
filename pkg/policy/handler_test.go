package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-interview/pkg/transcript"
)

func policyApp(client Client) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/api/policy/next", Handler(client))
	return app
}

func post(t *testing.T, app *fiber.App, body []byte) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/policy/next", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestHandlerSuccess(t *testing.T) {
	mock := NewMock("What was the outcome?")
	body, _ := json.Marshal(Request{Context: Context{Role: "PM"}, History: history(8), Input: "We shipped."})

	resp, data := post(t, policyApp(mock), body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, data)
	}

	var out Response
	json.Unmarshal(data, &out)
	if out.Utterance != "What was the outcome?" || out.Stage != StageLate || !out.ShouldEnd {
		t.Errorf("response = %+v", out)
	}
	if call, _ := mock.LastCall(); call.Context.Role != "PM" || len(call.History) != 16 {
		t.Errorf("client received %+v", call)
	}
}

func TestHandlerErrors(t *testing.T) {
	failing := &Mock{NextFunc: func(context.Context, Context, []transcript.Turn, string) (string, error) {
		return "", Unavailable(errors.New("provider down"))
	}}

	tests := []struct {
		name       string
		client     Client
		body       []byte
		wantStatus int
		wantKind   Kind
	}{
		{"malformed body", NewMock("x"), []byte("{"), http.StatusBadRequest, KindInvalidInput},
		{"empty input", NewLLM(nil), []byte(`{"input":""}`), http.StatusBadRequest, KindInvalidInput},
		{"provider down", failing, []byte(`{"input":"hello"}`), http.StatusServiceUnavailable, KindUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := post(t, policyApp(tt.client), tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var we WireError
			json.Unmarshal(data, &we)
			if we.Error.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", we.Error.Kind, tt.wantKind)
			}
		})
	}
}
