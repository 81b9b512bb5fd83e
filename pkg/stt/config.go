package stt

import (
	"errors"
	"log/slog"
	"time"
)

// Defaults for the realtime transcription session.
const (
	DefaultURL        = "wss://api.openai.com/v1/realtime"
	DefaultModel      = "gpt-4o-transcribe"
	DefaultSampleRate = 24000
)

// Sentinel errors.
var (
	// ErrNoAPIKey is returned when no API key is configured.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrNoSource is returned when no audio source is given.
	ErrNoSource = errors.New("stt: audio source required")

	// ErrAlreadyStarted is returned by Start while a session is open.
	ErrAlreadyStarted = errors.New("stt: recognizer already started")
)

// Config holds realtime transcription settings.
type Config struct {
	APIKey   string
	URL      string
	Model    string
	Language string

	// Server-side voice activity detection.
	VADThreshold    float64
	PrefixPadding   time.Duration
	SilenceDuration time.Duration

	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// Option configures a Realtime recognizer.
type Option func(*Config)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		URL:              DefaultURL,
		Model:            DefaultModel,
		Language:         "en",
		VADThreshold:     0.5,
		PrefixPadding:    300 * time.Millisecond,
		SilenceDuration:  500 * time.Millisecond,
		HandshakeTimeout: 10 * time.Second,
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

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithURL overrides the websocket endpoint.
func WithURL(url string) Option {
	return func(c *Config) { c.URL = url }
}

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithLanguage sets the expected spoken language.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithVAD tunes server voice activity detection.
func WithVAD(threshold float64, prefix, silence time.Duration) Option {
	return func(c *Config) {
		c.VADThreshold = threshold
		c.PrefixPadding = prefix
		c.SilenceDuration = silence
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
