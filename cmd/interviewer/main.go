// Interviewer - voice-driven mock interviews.
// Serves browser sessions over HTTP/WebSocket, or runs one interview on the
// local microphone and speakers.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-interview/internal/config"
	applog "github.com/teslashibe/go-interview/internal/log"
	"github.com/teslashibe/go-interview/pkg/app"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	applog.Init(cfg.LogLevel)

	a, err := app.New(cfg, applog.Component("interviewer"))
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Init(ctx); err != nil {
		log.Fatalf("❌ Initialization failed: %v", err)
	}
	defer a.Shutdown()

	if err := a.Run(ctx); err != nil {
		log.Printf("❌ Runtime error: %v", err)
	}
}

// parseFlags loads the environment and applies command line overrides.
func parseFlags() (*config.Config, error) {
	envFile := flag.String("env", "", "dotenv file to load (default .env)")
	mode := flag.String("mode", "", "Run mode: server or local (overrides INTERVIEW_MODE)")
	addr := flag.String("addr", "", "HTTP listen address (overrides HTTP_ADDRESS)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	profile := flag.String("profile", "", "Interview profile id for local mode")
	role := flag.String("role", "", "Role to interview for when no profile is given")
	level := flag.String("level", "", "Seniority level, e.g. senior")
	name := flag.String("name", "", "Candidate name used in the greeting")
	capture := flag.String("capture", "", "Server capture mode: browser or rtc")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}

	if *debug {
		cfg.LogLevel = "debug"
	}
	override(&cfg.Mode, *mode)
	override(&cfg.Addr, *addr)
	override(&cfg.Profile, *profile)
	override(&cfg.Role, *role)
	override(&cfg.Level, *level)
	override(&cfg.CandidateName, *name)
	override(&cfg.CaptureMode, *capture)
	return cfg, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
