// Package config loads process configuration for the interviewer commands.
// Flag parsing is done in cmd/interviewer; this package only reads the
// environment (and an optional .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Modes the interviewer binary can run in.
const (
	ModeServer = "server"
	ModeLocal  = "local"
)

// Capture modes for server sessions.
const (
	CaptureBrowser = "browser"
	CaptureRTC     = "rtc"
)

// Policy backends.
const (
	PolicyGemini = "gemini"
	PolicyOpenAI = "openai"
	PolicySDK    = "openai-sdk"
	PolicyHTTP   = "http"
)

// Config holds all configuration for the interviewer.
type Config struct {
	Mode     string `env:"INTERVIEW_MODE" envDefault:"server"`
	Addr     string `env:"HTTP_ADDRESS" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Transcript storage. DatabaseURL wins over TranscriptPath when set.
	TranscriptPath string        `env:"TRANSCRIPT_PATH"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	TranscriptTTL  time.Duration `env:"TRANSCRIPT_TTL"`
	SweepSchedule  string        `env:"TRANSCRIPT_SWEEP_SCHEDULE" envDefault:"0 * * * *"`

	// Dialogue policy
	PolicyBackend string `env:"POLICY_BACKEND" envDefault:"gemini"`
	PolicyURL     string `env:"POLICY_URL"`
	GeminiKey     string `env:"GEMINI_API_KEY"`
	GeminiModel   string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// Speech synthesis (local mode)
	TTSProvider       string `env:"TTS_PROVIDER" envDefault:"elevenlabs"`
	ElevenLabsKey     string `env:"ELEVENLABS_API_KEY"`
	ElevenLabsVoiceID string `env:"ELEVENLABS_VOICE_ID"`
	GoogleAPIKey      string `env:"GOOGLE_API_KEY"`

	// Google Docs export
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	// Turn taking
	SilenceThreshold time.Duration `env:"SILENCE_THRESHOLD" envDefault:"2500ms"`
	MaxHumanTurns    int           `env:"MAX_HUMAN_TURNS" envDefault:"8"`
	MaxRetries       int           `env:"MAX_RETRIES" envDefault:"3"`
	ArmOnActivity    bool          `env:"ARM_ON_ACTIVITY"`

	ProfilesDir string `env:"PROFILES_DIR" envDefault:"profiles"`

	// Server mode
	CaptureMode          string        `env:"CAPTURE_MODE" envDefault:"browser"`
	Language             string        `env:"SPEECH_LANGUAGE" envDefault:"en-US"`
	StaticDir            string        `env:"STATIC_DIR"`
	ClientConnectTimeout time.Duration `env:"CLIENT_CONNECT_TIMEOUT" envDefault:"30s"`
	ICEServers           []string      `env:"ICE_SERVERS" envSeparator:","`

	// Local mode
	AudioBackend  string `env:"AUDIO_BACKEND" envDefault:"auto"`
	Profile       string `env:"INTERVIEW_PROFILE"`
	Role          string `env:"INTERVIEW_ROLE"`
	Level         string `env:"INTERVIEW_LEVEL"`
	CandidateName string `env:"CANDIDATE_NAME"`
}

// Load reads the given dotenv files (".env" when none are named) and parses
// the environment into a Config. Missing dotenv files are not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load dotenv: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeServer, ModeLocal:
	default:
		return &Error{Field: "Mode", Message: fmt.Sprintf("unknown mode %q (want server or local)", c.Mode)}
	}

	switch c.PolicyBackend {
	case PolicyGemini:
		if c.GeminiKey == "" {
			return &Error{Field: "GeminiKey", Message: "GEMINI_API_KEY environment variable is required for the gemini policy"}
		}
	case PolicyOpenAI, PolicySDK:
		if c.OpenAIKey == "" {
			return &Error{Field: "OpenAIKey", Message: "OPENAI_API_KEY environment variable is required for the openai policy"}
		}
	case PolicyHTTP:
		if c.PolicyURL == "" {
			return &Error{Field: "PolicyURL", Message: "POLICY_URL environment variable is required for the http policy"}
		}
	default:
		return &Error{Field: "PolicyBackend", Message: fmt.Sprintf("unknown policy backend %q", c.PolicyBackend)}
	}

	if c.Mode == ModeServer {
		switch c.CaptureMode {
		case CaptureBrowser:
		case CaptureRTC:
			if c.OpenAIKey == "" {
				return &Error{Field: "OpenAIKey", Message: "OPENAI_API_KEY environment variable is required for rtc capture"}
			}
		default:
			return &Error{Field: "CaptureMode", Message: fmt.Sprintf("unknown capture mode %q (want browser or rtc)", c.CaptureMode)}
		}
	}

	if c.Mode == ModeLocal {
		if c.Profile == "" && c.Role == "" {
			return &Error{Field: "Role", Message: "local mode needs INTERVIEW_PROFILE or INTERVIEW_ROLE"}
		}
		if c.OpenAIKey == "" {
			return &Error{Field: "OpenAIKey", Message: "OPENAI_API_KEY environment variable is required for local transcription"}
		}
		switch c.TTSProvider {
		case "elevenlabs":
			if c.ElevenLabsKey == "" {
				return &Error{Field: "ElevenLabsKey", Message: "ELEVENLABS_API_KEY environment variable is required for ElevenLabs TTS"}
			}
		case "google":
			if c.GoogleAPIKey == "" {
				return &Error{Field: "GoogleAPIKey", Message: "GOOGLE_API_KEY environment variable is required for Google TTS"}
			}
		case "openai":
		default:
			return &Error{Field: "TTSProvider", Message: fmt.Sprintf("unknown tts provider %q", c.TTSProvider)}
		}
	}

	if c.SilenceThreshold <= 0 {
		return &Error{Field: "SilenceThreshold", Message: "SILENCE_THRESHOLD must be positive"}
	}
	if c.MaxHumanTurns <= 0 {
		return &Error{Field: "MaxHumanTurns", Message: "MAX_HUMAN_TURNS must be positive"}
	}
	if c.MaxRetries < 0 {
		return &Error{Field: "MaxRetries", Message: "MAX_RETRIES cannot be negative"}
	}
	return nil
}

// ExportEnabled reports whether Google OAuth credentials are configured.
func (c *Config) ExportEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
