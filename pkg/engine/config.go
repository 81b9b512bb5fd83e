package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-interview/pkg/render"
	"github.com/teslashibe/go-interview/pkg/transcript"
)

// Callbacks observe an engine. They run in order on a dedicated goroutine,
// never while the engine holds a lock. Any field may be nil.
type Callbacks struct {
	OnStateChange func(from, to State)
	OnUtterance   func(turn transcript.Turn)
	OnFault       func(f Fault)
	OnFinished    func(s Summary)
}

// Finalizer runs once when a session finishes, with its full transcript.
type Finalizer interface {
	Finalize(ctx context.Context, session Session, turns []transcript.Turn) error
}

// FinalizerFunc adapts a function to Finalizer.
type FinalizerFunc func(ctx context.Context, session Session, turns []transcript.Turn) error

// Finalize calls f.
func (f FinalizerFunc) Finalize(ctx context.Context, session Session, turns []transcript.Turn) error {
	return f(ctx, session, turns)
}

// Config holds engine settings.
type Config struct {
	// MaxHumanTurns ends the interview after this many answers. Silent
	// rounds do not count.
	MaxHumanTurns int

	// MaxRetries is the number of consecutive faults tolerated per state.
	MaxRetries int

	// SilenceThreshold is passed to every Listen.
	SilenceThreshold time.Duration

	// Backoff is multiplied by the attempt number before retrying.
	Backoff time.Duration

	// Greeting, when set, replaces the policy-generated opening line.
	// {{name}} and {{role}} are substituted from the session context.
	Greeting string

	Prosody render.Prosody

	FinalizeTimeout time.Duration
	Finalizer       Finalizer
	Callbacks       Callbacks
	Logger          *slog.Logger
}

// Option configures an Engine.
type Option func(*Config)

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxHumanTurns:    8,
		MaxRetries:       3,
		SilenceThreshold: 2500 * time.Millisecond,
		Backoff:          250 * time.Millisecond,
		Prosody:          render.DefaultProsody(),
		FinalizeTimeout:  30 * time.Second,
		Logger:           slog.Default(),
	}
}

// Apply applies options.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// WithMaxHumanTurns sets the answer ceiling.
func WithMaxHumanTurns(n int) Option {
	return func(c *Config) { c.MaxHumanTurns = n }
}

// WithMaxRetries sets the per-state retry bound.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithSilenceThreshold sets the listen threshold.
func WithSilenceThreshold(d time.Duration) Option {
	return func(c *Config) { c.SilenceThreshold = d }
}

// WithBackoff sets the retry backoff step.
func WithBackoff(d time.Duration) Option {
	return func(c *Config) { c.Backoff = d }
}

// WithGreeting uses a fixed opening line.
func WithGreeting(template string) Option {
	return func(c *Config) { c.Greeting = template }
}

// WithProsody sets how every line is spoken.
func WithProsody(p render.Prosody) Option {
	return func(c *Config) { c.Prosody = p }
}

// WithFinalizer sets the finalization hook.
func WithFinalizer(f Finalizer) Option {
	return func(c *Config) { c.Finalizer = f }
}

// WithCallbacks sets the event callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(c *Config) { c.Callbacks = cb }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
