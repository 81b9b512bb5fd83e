package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/teslashibe/go-interview/internal/httpc"
	"github.com/teslashibe/go-interview/pkg/transcript"
)

// HTTPClient calls a remote policy service speaking the wire contract.
type HTTPClient struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// NewHTTPClient creates a client for the endpoint at url. A nil hc uses the
// shared client.
func NewHTTPClient(url string, hc *http.Client, logger *slog.Logger) *HTTPClient {
	if hc == nil {
		hc = httpc.Client
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		url:    strings.TrimSuffix(url, "/"),
		http:   hc,
		logger: logger.With("component", "policy.http"),
	}
}

// NextUtterance posts the request and decodes either envelope.
func (c *HTTPClient) NextUtterance(ctx context.Context, ictx Context, history []transcript.Turn, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", InvalidInput("input is empty")
	}
	if history == nil {
		history = []transcript.Turn{}
	}

	body, err := json.Marshal(Request{Context: ictx, History: history, Input: input})
	if err != nil {
		return "", InvalidInput("encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", InvalidInput("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", Unavailable(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Unavailable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var we WireError
		if json.Unmarshal(data, &we) == nil && we.Error.Kind != "" {
			return "", &Error{Kind: we.Error.Kind, Message: we.Error.Message}
		}
		return "", &Error{Kind: KindUnavailable, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return "", Unavailable(fmt.Errorf("decode response: %w", err))
	}
	if strings.TrimSpace(out.Utterance) == "" {
		return "", &Error{Kind: KindUnavailable, Message: "empty utterance"}
	}
	c.logger.Debug("next utterance", "stage", out.Stage, "should_end", out.ShouldEnd)
	return out.Utterance, nil
}

var _ Client = (*HTTPClient)(nil)
