package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-interview/internal/config"
	"github.com/teslashibe/go-interview/internal/httpc"
	"github.com/teslashibe/go-interview/pkg/audioio"
	"github.com/teslashibe/go-interview/pkg/capture"
	"github.com/teslashibe/go-interview/pkg/inference"
	"github.com/teslashibe/go-interview/pkg/interview"
	"github.com/teslashibe/go-interview/pkg/policy"
	"github.com/teslashibe/go-interview/pkg/remote"
	"github.com/teslashibe/go-interview/pkg/render"
	"github.com/teslashibe/go-interview/pkg/rtc"
	"github.com/teslashibe/go-interview/pkg/stt"
	"github.com/teslashibe/go-interview/pkg/transcript"
	"github.com/teslashibe/go-interview/pkg/tts"
)

// openStore opens Postgres when DATABASE_URL is set, the JSON file store
// otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (transcript.ListStore, error) {
	if cfg.DatabaseURL != "" {
		return transcript.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	}
	if cfg.TranscriptPath != "" {
		return transcript.NewJSONStore(cfg.TranscriptPath)
	}
	return transcript.NewDefaultStore()
}

// buildPolicy returns the dialogue policy for the configured backend.
func buildPolicy(cfg *config.Config, logger *slog.Logger) (policy.Client, error) {
	if cfg.PolicyBackend == config.PolicyHTTP {
		return policy.NewHTTPClient(cfg.PolicyURL, httpc.NewClient(30*time.Second), logger), nil
	}

	opts := []inference.Option{inference.WithLogger(logger)}
	var (
		provider inference.Provider
		err      error
	)
	switch cfg.PolicyBackend {
	case config.PolicyGemini:
		provider, err = inference.NewGemini(append(opts,
			inference.WithAPIKey(cfg.GeminiKey),
			inference.WithModel(cfg.GeminiModel))...)
	case config.PolicyOpenAI, config.PolicySDK:
		opts = append(opts, inference.WithAPIKey(cfg.OpenAIKey), inference.WithModel(cfg.OpenAIModel))
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, inference.WithBaseURL(cfg.OpenAIBaseURL))
		}
		if cfg.PolicyBackend == config.PolicySDK {
			provider, err = inference.NewSDK(opts...)
		} else {
			provider, err = inference.NewClient(opts...)
		}
	default:
		return nil, fmt.Errorf("unknown policy backend %q", cfg.PolicyBackend)
	}
	if err != nil {
		return nil, err
	}
	return policy.NewLLM(provider, policy.WithLogger(logger)), nil
}

func captureOptions(cfg *config.Config, logger *slog.Logger) []capture.Option {
	opts := []capture.Option{capture.WithLogger(logger)}
	if cfg.ArmOnActivity {
		opts = append(opts, capture.WithArmPolicy(capture.ArmOnActivity))
	}
	return opts
}

// sttOptions configures realtime transcription. The service wants an
// ISO-639-1 code, so "en-US" becomes "en".
func sttOptions(cfg *config.Config, logger *slog.Logger) []stt.Option {
	lang, _, _ := strings.Cut(cfg.Language, "-")
	return []stt.Option{
		stt.WithAPIKey(cfg.OpenAIKey),
		stt.WithLanguage(strings.ToLower(lang)),
		stt.WithLogger(logger),
	}
}

// serverMedia picks browser or WebRTC capture for server sessions.
func serverMedia(cfg *config.Config, dir *remote.Directory, logger *slog.Logger) interview.Media {
	if cfg.CaptureMode == config.CaptureRTC {
		peerOpts := []rtc.Option{rtc.WithLogger(logger)}
		if len(cfg.ICEServers) > 0 {
			peerOpts = append(peerOpts, rtc.WithICEServers(cfg.ICEServers...))
		}
		return interview.NewRTCMedia(dir, peerOpts, sttOptions(cfg, logger), captureOptions(cfg, logger))
	}
	return &interview.RemoteMedia{
		Dir:      dir,
		Language: cfg.Language,
		Capture:  captureOptions(cfg, logger),
	}
}

// buildTTS returns the configured synthesis provider, falling back to
// OpenAI when a key for it is present.
func buildTTS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (tts.Provider, error) {
	var (
		primary tts.Provider
		err     error
	)
	switch cfg.TTSProvider {
	case "elevenlabs":
		opts := []tts.Option{tts.WithAPIKey(cfg.ElevenLabsKey), tts.WithLogger(logger)}
		if cfg.ElevenLabsVoiceID != "" {
			opts = append(opts, tts.WithVoice(cfg.ElevenLabsVoiceID))
		}
		primary, err = tts.NewElevenLabs(opts...)
	case "google":
		primary, err = tts.NewGoogle(ctx, tts.WithAPIKey(cfg.GoogleAPIKey), tts.WithLogger(logger))
	case "openai":
		primary, err = tts.NewOpenAI(tts.WithAPIKey(cfg.OpenAIKey), tts.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.TTSProvider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.TTSProvider == "openai" || cfg.OpenAIKey == "" {
		return primary, nil
	}
	fallback, err := tts.NewOpenAI(tts.WithAPIKey(cfg.OpenAIKey), tts.WithLogger(logger))
	if err != nil {
		return primary, nil
	}
	return tts.NewChainWithLogger(logger, primary, fallback)
}

// localMedia opens the machine's microphone and speakers.
func localMedia(ctx context.Context, cfg *config.Config, logger *slog.Logger) (interview.Media, audioio.Source, *render.Speaker, error) {
	acfg := audioio.DefaultConfig()
	acfg.Backend = audioio.Backend(cfg.AudioBackend)

	source, err := audioio.NewSource(acfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	sink, err := audioio.NewSink(acfg, logger)
	if err != nil {
		source.Close()
		return nil, nil, nil, err
	}

	rec, err := stt.NewRealtime(source, sttOptions(cfg, logger)...)
	if err != nil {
		source.Close()
		sink.Close()
		return nil, nil, nil, err
	}

	provider, err := buildTTS(ctx, cfg, logger)
	if err != nil {
		source.Close()
		sink.Close()
		return nil, nil, nil, err
	}

	speaker := render.NewSpeaker(provider, sink, logger)
	media := interview.Fixed{
		Capture: capture.NewListener(rec, captureOptions(cfg, logger)...),
		Render:  speaker,
	}
	return media, source, speaker, nil
}
