// Package app wires the interviewer's components from configuration and
// runs them in server or local mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/teslashibe/go-interview/internal/config"
	"github.com/teslashibe/go-interview/pkg/audioio"
	"github.com/teslashibe/go-interview/pkg/engine"
	"github.com/teslashibe/go-interview/pkg/export"
	"github.com/teslashibe/go-interview/pkg/hub"
	"github.com/teslashibe/go-interview/pkg/interview"
	"github.com/teslashibe/go-interview/pkg/policy"
	"github.com/teslashibe/go-interview/pkg/remote"
	"github.com/teslashibe/go-interview/pkg/render"
	"github.com/teslashibe/go-interview/pkg/transcript"
	"github.com/teslashibe/go-interview/pkg/web"
)

// App is the interviewer application.
// It manages all components and their lifecycle.
type App struct {
	config *config.Config
	logger *slog.Logger

	store    transcript.ListStore
	sweeper  *transcript.Sweeper
	policy   policy.Client
	profiles *interview.Profiles
	service  *interview.Service

	// Server mode
	events    *hub.Hub
	directory *remote.Directory
	exporter  *export.GoogleDocs
	webServer *web.Server

	// Local mode
	source  audioio.Source
	speaker *render.Speaker
}

// New creates an application from validated configuration.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{config: cfg, logger: logger}, nil
}

// Init builds every component.
// Call this after New() and before Run().
func (a *App) Init(ctx context.Context) error {
	fmt.Println("🎙️  Interviewer")
	fmt.Println("==============")

	fmt.Print("💾 Opening transcript store... ")
	store, err := openStore(ctx, a.config, a.logger)
	if err != nil {
		return fmt.Errorf("transcript store: %w", err)
	}
	a.store = store
	fmt.Println("✅")

	a.policy, err = buildPolicy(a.config, a.logger)
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	a.profiles, err = interview.LoadProfiles(a.config.ProfilesDir)
	if err != nil {
		return fmt.Errorf("profiles: %w", err)
	}
	fmt.Printf("📋 %d interview profiles loaded\n", a.profiles.Len())

	switch a.config.Mode {
	case config.ModeLocal:
		return a.initLocal(ctx)
	default:
		return a.initServer()
	}
}

func (a *App) engineOptions() []engine.Option {
	return []engine.Option{
		engine.WithMaxHumanTurns(a.config.MaxHumanTurns),
		engine.WithMaxRetries(a.config.MaxRetries),
		engine.WithSilenceThreshold(a.config.SilenceThreshold),
	}
}

func (a *App) initServer() error {
	a.events = hub.New("events", a.logger)
	a.directory = remote.NewDirectory(a.logger, a.config.ClientConnectTimeout)

	opts := []interview.ServiceOption{
		interview.WithProfiles(a.profiles),
		interview.WithHub(a.events),
		interview.WithEngineOptions(a.engineOptions()...),
		interview.WithLogger(a.logger),
	}

	if a.config.ExportEnabled() {
		exporter, err := export.NewGoogleDocs(export.Config{
			ClientID:     a.config.GoogleClientID,
			ClientSecret: a.config.GoogleClientSecret,
			RedirectURL:  a.config.GoogleRedirectURL,
			Logger:       a.logger,
		})
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		a.exporter = exporter
		opts = append(opts, interview.WithFinalizer(exporter))
		fmt.Printf("📄 Google Docs export enabled (connected: %v)\n", exporter.Connected())
	}

	a.service = interview.NewService(a.store, a.policy, serverMedia(a.config, a.directory, a.logger), opts...)

	if a.config.TranscriptTTL > 0 {
		sweeper, err := transcript.NewSweeper(a.store, a.config.TranscriptTTL,
			transcript.WithInUse(a.service.InUse),
			transcript.WithSweepLogger(a.logger))
		if err != nil {
			return err
		}
		a.sweeper = sweeper
	}

	webOpts := []web.Option{
		web.WithEvents(a.events),
		web.WithRemote(a.directory),
		web.WithPolicy(a.policy),
		web.WithLogger(a.logger),
	}
	if a.exporter != nil {
		webOpts = append(webOpts, web.WithExport(a.exporter))
	}
	if a.config.StaticDir != "" {
		webOpts = append(webOpts, web.WithStatic(a.config.StaticDir))
	}
	a.webServer = web.NewServer(a.config.Addr, a.service, webOpts...)

	fmt.Printf("🎧 Capture: %s\n", a.config.CaptureMode)
	return nil
}

func (a *App) initLocal(ctx context.Context) error {
	fmt.Print("🎤 Opening audio devices... ")
	media, source, speaker, err := localMedia(ctx, a.config, a.logger)
	if err != nil {
		return fmt.Errorf("local audio: %w", err)
	}
	a.source, a.speaker = source, speaker
	fmt.Println("✅")

	a.service = interview.NewService(a.store, a.policy, media,
		interview.WithProfiles(a.profiles),
		interview.WithEngineOptions(a.engineOptions()...),
		interview.WithLogger(a.logger),
		interview.WithCallbacks(engine.Callbacks{
			OnUtterance: printTurn,
			OnFault: func(f engine.Fault) {
				fmt.Printf("⚠️  %s: %v (attempt %d)\n", f.State, f.Err, f.Attempt)
			},
		}),
	)
	return nil
}

func printTurn(turn transcript.Turn) {
	if turn.Speaker == transcript.SpeakerHuman {
		fmt.Printf("🗣️  You: %s\n", turn.Text)
		return
	}
	fmt.Printf("🤖 Interviewer: %s\n", turn.Text)
}

// Run blocks until ctx is cancelled (server) or the interview ends (local).
func (a *App) Run(ctx context.Context) error {
	if a.config.Mode == config.ModeLocal {
		return a.runLocal(ctx)
	}

	go a.events.Run(ctx)
	if a.sweeper != nil {
		if err := a.sweeper.Start(ctx, a.config.SweepSchedule); err != nil {
			return fmt.Errorf("sweeper: %w", err)
		}
	}
	a.webServer.StartAsync()

	fmt.Println("\n✅ Ready. Candidates join at /ws/client/:id, dashboards at /ws/events")
	fmt.Println("   (Ctrl+C to exit)")

	<-ctx.Done()
	return nil
}

func (a *App) runLocal(ctx context.Context) error {
	req := interview.CreateRequest{
		Profile:       a.config.Profile,
		CandidateName: a.config.CandidateName,
	}
	if req.Profile == "" {
		req.Context = &policy.Context{Role: a.config.Role, Level: a.config.Level}
	}

	e, err := a.service.Create(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println("\n🎤 Interview started. Speak after the interviewer finishes.")
	fmt.Println("   (Ctrl+C to end early)")

	select {
	case <-e.Done():
	case <-ctx.Done():
		if err := e.End(); err != nil {
			a.logger.Warn("end interview", "error", err)
		}
		<-e.Done()
	}

	sum := e.Summary()
	fmt.Printf("\n📝 Interview finished (%s): %d answers, %d turns", sum.Reason, sum.HumanTurns, sum.Turns)
	if sum.Degraded {
		fmt.Print(" ⚠️  degraded")
	}
	fmt.Printf("\n   Session: %s\n", sum.SessionID)
	return nil
}

// Shutdown stops every component.
func (a *App) Shutdown() {
	fmt.Println("\n👋 Goodbye!")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if a.service != nil {
		errs = append(errs, a.service.Shutdown(ctx))
	}
	if a.webServer != nil {
		errs = append(errs, a.webServer.Shutdown())
	}
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.speaker != nil {
		errs = append(errs, a.speaker.Close())
	}
	if a.source != nil {
		errs = append(errs, a.source.Close())
	}
	if a.store != nil {
		if c, ok := a.store.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Shutdown: %v\n", err)
	}
}

// Service returns the session service (nil before Init).
func (a *App) Service() *interview.Service {
	return a.service
}
