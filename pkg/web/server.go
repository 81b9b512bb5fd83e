// Package web serves the interview HTTP API, the dashboard event stream and
// the static dashboard.
package web

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-interview/pkg/export"
	"github.com/teslashibe/go-interview/pkg/hub"
	"github.com/teslashibe/go-interview/pkg/interview"
	"github.com/teslashibe/go-interview/pkg/policy"
	"github.com/teslashibe/go-interview/pkg/remote"
)

// Server is the interview web server
type Server struct {
	app  *fiber.App
	addr string

	sessions *interview.Service
	events   *hub.Hub
	remote   *remote.Directory
	policy   policy.Client
	export   *export.GoogleDocs
	static   string
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithEvents serves engine events from h on /ws/events.
func WithEvents(h *hub.Hub) Option {
	return func(s *Server) { s.events = h }
}

// WithRemote accepts browser speech clients on /ws/client/:id.
func WithRemote(d *remote.Directory) Option {
	return func(s *Server) { s.remote = d }
}

// WithPolicy exposes client on POST /api/policy/next.
func WithPolicy(client policy.Client) Option {
	return func(s *Server) { s.policy = client }
}

// WithExport mounts the Google Docs OAuth routes under /api/export.
func WithExport(g *export.GoogleDocs) Option {
	return func(s *Server) { s.export = g }
}

// WithStatic serves the dashboard from dir.
func WithStatic(dir string) Option {
	return func(s *Server) { s.static = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a server listening on addr (":8080").
func NewServer(addr string, sessions *interview.Service, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")

	app := fiber.New(fiber.Config{
		AppName:               "Interviewer",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	if s.static != "" {
		app.Static("/", s.static)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/profiles", s.handleListProfiles)

	sessionsAPI := api.Group("/sessions")
	sessionsAPI.Post("/", s.handleCreateSession)
	sessionsAPI.Get("/", s.handleListSessions)
	sessionsAPI.Get("/:id", s.handleGetSession)
	sessionsAPI.Post("/:id/end", s.handleEndSession)
	sessionsAPI.Get("/:id/transcript", s.handleGetTranscript)
	sessionsAPI.Delete("/:id/transcript", s.handleClearTranscript)
	sessionsAPI.Post("/:id/rtc", s.handleRTCOffer)

	if s.policy != nil {
		api.Post("/policy/next", policy.Handler(s.policy))
	}

	if s.export != nil {
		exp := api.Group("/export")
		exp.Get("/auth", adaptor.HTTPHandlerFunc(s.export.HandleAuthStart()))
		exp.Get("/callback", adaptor.HTTPHandlerFunc(s.export.HandleAuthCallback()))
		exp.Get("/status", adaptor.HTTPHandlerFunc(s.export.HandleStatus()))
		exp.Post("/disconnect", adaptor.HTTPHandlerFunc(s.export.HandleDisconnect()))
		api.Get("/sessions/:id/export", s.handleExportLink)
	}

	if s.remote != nil {
		s.remote.RegisterAPIRoutes(api)
		s.remote.RegisterRoutes(app)
	}

	if s.events != nil {
		app.Use("/ws/events", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/events", websocket.New(s.handleEventsWS))
	}

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	fmt.Printf("🌐 Interviewer: http://localhost%s\n", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
