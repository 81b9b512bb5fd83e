package export

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/teslashibe/go-interview/pkg/engine"
	"github.com/teslashibe/go-interview/pkg/policy"
	"github.com/teslashibe/go-interview/pkg/transcript"
)

// docsServer fakes the two Docs API calls an export makes.
type docsServer struct {
	*httptest.Server
	mu       sync.Mutex
	auth     []string
	title    string
	inserted string
}

func newDocsServer(t *testing.T) *docsServer {
	t.Helper()
	s := &docsServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.auth = append(s.auth, r.Header.Get("Authorization"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/documents":
			var doc struct {
				Title string `json:"title"`
			}
			json.NewDecoder(r.Body).Decode(&doc)
			s.title = doc.Title
			json.NewEncoder(w).Encode(map[string]string{"documentId": "doc-1", "title": doc.Title})

		case r.Method == http.MethodPost && r.URL.Path == "/v1/documents/doc-1:batchUpdate":
			var req struct {
				Requests []struct {
					InsertText struct {
						Text string `json:"text"`
					} `json:"insertText"`
				} `json:"requests"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			if len(req.Requests) == 1 {
				s.inserted = req.Requests[0].InsertText.Text
			}
			json.NewEncoder(w).Encode(map[string]string{"documentId": "doc-1"})

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *docsServer) snapshot() (auth []string, title, inserted string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.auth...), s.title, s.inserted
}

func newExporter(t *testing.T, cfg Config) *GoogleDocs {
	t.Helper()
	cfg.ClientID = "test-client-id"
	cfg.ClientSecret = "test-client-secret"
	if cfg.TokenPath == "" {
		cfg.TokenPath = filepath.Join(t.TempDir(), "token.json")
	}
	g, err := NewGoogleDocs(cfg)
	if err != nil {
		t.Fatalf("NewGoogleDocs() error = %v", err)
	}
	return g
}

func session() engine.Session {
	return engine.Session{
		ID: "session-1",
		Context: policy.Context{
			Role:          "Backend Engineer",
			Level:         "senior",
			TechStack:     []string{"Go", "Postgres"},
			CandidateName: "Sam",
		},
		CreatedAt: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
}

func turns() []transcript.Turn {
	at := time.Date(2026, 3, 4, 10, 0, 5, 0, time.UTC)
	return []transcript.Turn{
		{Speaker: transcript.SpeakerSystem, Text: "Hi Sam, tell me about yourself.", Timestamp: at},
		{Speaker: transcript.SpeakerHuman, Text: "I build APIs in Go.", Timestamp: at.Add(4 * time.Second)},
	}
}

func TestNewGoogleDocsMissingCredentials(t *testing.T) {
	if _, err := NewGoogleDocs(Config{}); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("error = %v, want ErrNoCredentials", err)
	}
}

func TestNotConnected(t *testing.T) {
	g := newExporter(t, Config{})

	if g.Connected() {
		t.Error("should not be connected without a token")
	}
	if _, err := g.CreateDoc(context.Background(), "t", "c"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("CreateDoc() error = %v, want ErrNotConnected", err)
	}
	if err := g.Finalize(context.Background(), session(), turns()); err != nil {
		t.Errorf("Finalize() should skip quietly, got %v", err)
	}

	status := g.GetStatus()
	if status.Connected || !strings.Contains(status.AuthURL, "accounts.google.com") {
		t.Errorf("status = %+v", status)
	}
}

func TestFinalizeExportsTranscript(t *testing.T) {
	srv := newDocsServer(t)
	g := newExporter(t, Config{DocsEndpoint: srv.URL + "/"})
	if err := g.UseToken(&oauth2.Token{AccessToken: "test-token", TokenType: "Bearer"}); err != nil {
		t.Fatalf("UseToken() error = %v", err)
	}

	if err := g.Finalize(context.Background(), session(), turns()); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	auth, title, inserted := srv.snapshot()
	if title != "Backend Engineer interview with Sam (Mar 4, 2026)" {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{
		"Level: senior",
		"Tech stack: Go, Postgres",
		"[10:00:05] Interviewer: Hi Sam, tell me about yourself.",
		"[10:00:09] Candidate: I build APIs in Go.",
	} {
		if !strings.Contains(inserted, want) {
			t.Errorf("document missing %q:\n%s", want, inserted)
		}
	}
	for _, a := range auth {
		if a != "Bearer test-token" {
			t.Errorf("Authorization = %q", a)
		}
	}
	if id, ok := g.DocID("session-1"); !ok || id != "doc-1" {
		t.Errorf("DocID() = %q, %v", id, ok)
	}
}

func TestFinalizeEmptyTranscript(t *testing.T) {
	srv := newDocsServer(t)
	g := newExporter(t, Config{DocsEndpoint: srv.URL + "/"})
	g.UseToken(&oauth2.Token{AccessToken: "test-token"})

	if err := g.Finalize(context.Background(), session(), nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if auth, _, _ := srv.snapshot(); len(auth) != 0 {
		t.Errorf("empty transcript should not be exported, got %d requests", len(auth))
	}
}

func TestOAuthCallback(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("code") != "auth-code" {
			t.Errorf("code = %q", r.Form.Get("code"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "fresh-token",
			"token_type":    "Bearer",
			"refresh_token": "refresh",
			"expires_in":    3600,
		})
	}))
	defer tokens.Close()

	tokenPath := filepath.Join(t.TempDir(), "nested", "token.json")
	g := newExporter(t, Config{
		TokenPath:     tokenPath,
		OAuthEndpoint: oauth2.Endpoint{AuthURL: tokens.URL + "/auth", TokenURL: tokens.URL + "/token"},
	})

	start := httptest.NewRecorder()
	g.HandleAuthStart()(start, httptest.NewRequest(http.MethodGet, "/api/export/auth", nil))
	if start.Code != http.StatusTemporaryRedirect {
		t.Fatalf("auth start status = %d", start.Code)
	}
	loc, _ := url.Parse(start.Header().Get("Location"))
	state := loc.Query().Get("state")
	if state == "" || loc.Query().Get("access_type") != "offline" {
		t.Fatalf("redirect = %s", loc)
	}

	t.Run("bad state", func(t *testing.T) {
		rec := httptest.NewRecorder()
		g.HandleAuthCallback()(rec, httptest.NewRequest(http.MethodGet, "/cb?code=auth-code&state=forged", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	// A failed callback consumes the state.
	start = httptest.NewRecorder()
	g.HandleAuthStart()(start, httptest.NewRequest(http.MethodGet, "/api/export/auth", nil))
	loc, _ = url.Parse(start.Header().Get("Location"))
	state = loc.Query().Get("state")

	rec := httptest.NewRecorder()
	g.HandleAuthCallback()(rec, httptest.NewRequest(http.MethodGet, "/cb?code=auth-code&state="+state, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("callback status = %d: %s", rec.Code, rec.Body.String())
	}
	if !g.Connected() {
		t.Error("should be connected after callback")
	}

	// The token survives a restart.
	again := newExporter(t, Config{TokenPath: tokenPath})
	if !again.Connected() {
		t.Error("saved token was not loaded")
	}

	disc := httptest.NewRecorder()
	g.HandleDisconnect()(disc, httptest.NewRequest(http.MethodPost, "/api/export/disconnect", nil))
	if disc.Code != http.StatusOK || g.Connected() {
		t.Errorf("disconnect status = %d, connected = %v", disc.Code, g.Connected())
	}
	if reloaded := newExporter(t, Config{TokenPath: tokenPath}); reloaded.Connected() {
		t.Error("token file should be removed on disconnect")
	}
}

func TestCallbackMissingCode(t *testing.T) {
	g := newExporter(t, Config{})
	rec := httptest.NewRecorder()
	g.HandleAuthCallback()(rec, httptest.NewRequest(http.MethodGet, "/cb", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	g := newExporter(t, Config{})
	rec := httptest.NewRecorder()
	g.HandleStatus()(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var status Status
	json.NewDecoder(rec.Body).Decode(&status)
	if status.Connected || status.AuthURL == "" {
		t.Errorf("status = %+v", status)
	}
}

func TestFormatWithoutOptionalFields(t *testing.T) {
	s := engine.Session{ID: "x", CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	got := Format(s, nil)
	if !strings.HasPrefix(got, "Interview (Jan 2, 2026)") || strings.Contains(got, "Level:") {
		t.Errorf("Format() = %q", got)
	}
}

func TestDocURL(t *testing.T) {
	if got := DocURL("abc"); got != "https://docs.google.com/document/d/abc/edit" {
		t.Errorf("DocURL() = %q", got)
	}
}
