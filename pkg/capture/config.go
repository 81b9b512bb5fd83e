package capture

import (
	"log/slog"
	"time"
)

// ArmPolicy selects when the silence deadline starts counting.
type ArmPolicy int

const (
	// ArmImmediately starts the deadline when Listen begins, so a human who
	// never speaks is classified as silent after one threshold.
	ArmImmediately ArmPolicy = iota

	// ArmOnActivity waits for the first speech fragment before arming.
	// A listen with no activity then only settles when the stream ends.
	ArmOnActivity
)

// DefaultThreshold is used when Listen is called with a non-positive threshold.
const DefaultThreshold = 2500 * time.Millisecond

// Config holds Listener configuration.
type Config struct {
	Arm              ArmPolicy
	DefaultThreshold time.Duration
	Logger           *slog.Logger
}

// Option configures a Listener.
type Option func(*Config)

// WithArmPolicy sets the silence deadline arm policy.
func WithArmPolicy(p ArmPolicy) Option {
	return func(c *Config) {
		c.Arm = p
	}
}

// WithDefaultThreshold sets the threshold used when Listen gets zero.
func WithDefaultThreshold(d time.Duration) Option {
	return func(c *Config) {
		c.DefaultThreshold = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the default listener configuration.
func DefaultConfig() *Config {
	return &Config{
		Arm:              ArmImmediately,
		DefaultThreshold: DefaultThreshold,
		Logger:           slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
