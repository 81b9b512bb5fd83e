// Package export publishes finished interview transcripts to Google Docs.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/option"

	"github.com/teslashibe/go-interview/pkg/engine"
	"github.com/teslashibe/go-interview/pkg/transcript"
)

// Sentinel errors.
var (
	// ErrNoCredentials is returned when the OAuth client id or secret is missing.
	ErrNoCredentials = errors.New("export: GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")

	// ErrNotConnected is returned by document calls before OAuth completed.
	ErrNotConnected = errors.New("export: not connected to Google")

	// ErrBadState is returned when the OAuth callback state does not match.
	ErrBadState = errors.New("export: oauth state mismatch")
)

// Config configures the Google Docs exporter.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "http://localhost:8080/api/export/callback"
	TokenPath    string // default ~/.interviewer/google_token.json

	// OAuthEndpoint and DocsEndpoint override Google's endpoints (tests).
	OAuthEndpoint oauth2.Endpoint
	DocsEndpoint  string

	Timeout time.Duration
	Logger  *slog.Logger
}

// GoogleDocs handles OAuth and writes transcripts as Google Docs.
// It implements engine.Finalizer.
type GoogleDocs struct {
	config    *oauth2.Config
	tokenPath string
	endpoint  string
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.RWMutex
	token   *oauth2.Token
	service *docs.Service
	state   string
	docs    map[string]string // session id → document id
}

// NewGoogleDocs creates an exporter and loads a previously saved token.
func NewGoogleDocs(cfg Config) (*GoogleDocs, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNoCredentials
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = "http://localhost:8080/api/export/callback"
	}
	if cfg.TokenPath == "" {
		home, _ := os.UserHomeDir()
		cfg.TokenPath = filepath.Join(home, ".interviewer", "google_token.json")
	}
	if cfg.OAuthEndpoint.TokenURL == "" {
		cfg.OAuthEndpoint = google.Endpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	g := &GoogleDocs{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/documents",
				"https://www.googleapis.com/auth/drive.file",
			},
			Endpoint: cfg.OAuthEndpoint,
		},
		tokenPath: cfg.TokenPath,
		endpoint:  cfg.DocsEndpoint,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger.With("component", "export"),
		docs:      make(map[string]string),
	}

	if tok, err := g.loadToken(); err == nil {
		if err := g.UseToken(tok); err != nil {
			g.logger.Warn("saved token unusable", "error", err)
		}
	}
	return g, nil
}

// Connected reports whether a usable token is present.
func (g *GoogleDocs) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.service != nil && g.token != nil && (g.token.Valid() || g.token.RefreshToken != "")
}

// AuthURL returns the consent URL with a fresh state value.
func (g *GoogleDocs) AuthURL() string {
	state := uuid.NewString()
	g.mu.Lock()
	g.state = state
	g.mu.Unlock()
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange completes the OAuth flow with the callback's state and code.
func (g *GoogleDocs) Exchange(ctx context.Context, state, code string) error {
	g.mu.Lock()
	expected := g.state
	g.state = ""
	g.mu.Unlock()
	if expected == "" || state != expected {
		return ErrBadState
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("export: exchange code: %w", err)
	}
	if err := g.UseToken(tok); err != nil {
		return err
	}
	if err := g.saveToken(tok); err != nil {
		g.logger.Warn("failed to save token", "error", err)
	}
	return nil
}

// UseToken installs an OAuth token and builds the Docs service from it.
func (g *GoogleDocs) UseToken(tok *oauth2.Token) error {
	client := g.config.Client(context.Background(), tok)
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}

	service, err := docs.NewService(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("export: create docs service: %w", err)
	}

	g.mu.Lock()
	g.token = tok
	g.service = service
	g.mu.Unlock()
	return nil
}

// Disconnect forgets the token and removes it from disk.
func (g *GoogleDocs) Disconnect() error {
	g.mu.Lock()
	g.token = nil
	g.service = nil
	g.mu.Unlock()

	if err := os.Remove(g.tokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("export: remove token: %w", err)
	}
	return nil
}

// CreateDoc creates a document with the given title and body and returns
// its id.
func (g *GoogleDocs) CreateDoc(ctx context.Context, title, content string) (string, error) {
	g.mu.RLock()
	service := g.service
	g.mu.RUnlock()
	if service == nil {
		return "", ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	created, err := service.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("export: create document: %w", err)
	}
	if content == "" {
		return created.DocumentId, nil
	}

	_, err = service.Documents.BatchUpdate(created.DocumentId, &docs.BatchUpdateDocumentRequest{
		Requests: []*docs.Request{{
			InsertText: &docs.InsertTextRequest{
				Location: &docs.Location{Index: 1},
				Text:     content,
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return created.DocumentId, fmt.Errorf("export: write document: %w", err)
	}
	return created.DocumentId, nil
}

// Finalize exports the transcript of a finished session. Sessions finishing
// while no Google account is connected are skipped.
func (g *GoogleDocs) Finalize(ctx context.Context, session engine.Session, turns []transcript.Turn) error {
	if !g.Connected() {
		g.logger.Info("export skipped, not connected", "session", session.ID)
		return nil
	}
	if len(turns) == 0 {
		return nil
	}

	docID, err := g.CreateDoc(ctx, Title(session), Format(session, turns))
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.docs[session.ID] = docID
	g.mu.Unlock()
	g.logger.Info("transcript exported", "session", session.ID, "doc", docID)
	return nil
}

// DocID returns the document exported for a session, if any.
func (g *GoogleDocs) DocID(sessionID string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.docs[sessionID]
	return id, ok
}

// DocURL returns the edit URL of a document.
func DocURL(docID string) string {
	return fmt.Sprintf("https://docs.google.com/document/d/%s/edit", docID)
}

func (g *GoogleDocs) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(g.tokenPath)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func (g *GoogleDocs) saveToken(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(g.tokenPath), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(g.tokenPath, data, 0600)
}

// Status is the connection state reported to the UI.
type Status struct {
	Connected bool   `json:"connected"`
	AuthURL   string `json:"auth_url,omitempty"`
}

// GetStatus returns the current connection status.
func (g *GoogleDocs) GetStatus() Status {
	status := Status{Connected: g.Connected()}
	if !status.Connected {
		status.AuthURL = g.AuthURL()
	}
	return status
}

var _ engine.Finalizer = (*GoogleDocs)(nil)
