package rtc

import (
	"errors"
	"log/slog"
	"time"
)

// Opus always runs at 48 kHz; browsers send 20 ms frames.
const (
	OpusSampleRate = 48000
	maxFrameSize   = 5760 // 120 ms at 48 kHz
)

// Sentinel errors.
var (
	// ErrClosed is returned after the peer or source has been closed.
	ErrClosed = errors.New("rtc: closed")

	// ErrBadOffer is returned for offers that are not SDP offers.
	ErrBadOffer = errors.New("rtc: invalid SDP offer")
)

// Config holds WebRTC ingest settings.
type Config struct {
	// ICEServers are STUN/TURN URLs offered to the remote peer.
	ICEServers []string

	// Channels is the decoded channel count. Browsers send mono speech.
	Channels int

	// GatherTimeout bounds ICE gathering before the answer is returned.
	GatherTimeout time.Duration

	// StreamBuffer is the number of decoded frames buffered for readers.
	StreamBuffer int

	Logger *slog.Logger
}

// Option configures a Peer.
type Option func(*Config)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ICEServers:    []string{"stun:stun.l.google.com:19302"},
		Channels:      1,
		GatherTimeout: 5 * time.Second,
		StreamBuffer:  50,
		Logger:        slog.Default(),
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
	if c.Channels <= 0 {
		c.Channels = 1
	}
}

// WithICEServers replaces the ICE server list. An empty list uses host
// candidates only.
func WithICEServers(urls ...string) Option {
	return func(c *Config) { c.ICEServers = urls }
}

// WithGatherTimeout bounds ICE gathering.
func WithGatherTimeout(d time.Duration) Option {
	return func(c *Config) { c.GatherTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
