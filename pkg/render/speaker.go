package render

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/teslashibe/go-interview/pkg/audioio"
	"github.com/teslashibe/go-interview/pkg/tts"
)

// Speaker renders text through a TTS provider onto an audio sink.
type Speaker struct {
	provider tts.Provider
	sink     audioio.Sink
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelCauseFunc
	gen     uint64
	started bool
	closed  bool

	// play serializes sink access so a superseded line has cleared the sink
	// before the next one writes.
	play sync.Mutex
}

// NewSpeaker creates a speaker. A nil logger uses slog.Default.
func NewSpeaker(provider tts.Provider, sink audioio.Sink, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{
		provider: provider,
		sink:     sink,
		logger:   logger.With("component", "render.speaker", "tts", provider.Name(), "sink", sink.Name()),
	}
}

// Speak synthesizes and plays text, superseding any line in flight.
func (s *Speaker) Speak(ctx context.Context, text string, prosody Prosody) error {
	if strings.TrimSpace(text) == "" {
		return &RenderError{Op: "synthesize", Err: ErrEmptyText}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.cancel != nil {
		s.cancel(ErrInterrupted)
	}
	sctx, cancel := context.WithCancelCause(ctx)
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.gen == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel(nil)
	}()

	s.play.Lock()
	defer s.play.Unlock()

	err := s.render(sctx, text, prosody)
	if err == nil {
		return nil
	}
	if sctx.Err() != nil {
		s.sink.Clear()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(context.Cause(sctx), ErrInterrupted) {
			s.logger.Debug("speech interrupted", "chars", len(text))
			return ErrInterrupted
		}
	}
	return err
}

func (s *Speaker) render(ctx context.Context, text string, prosody Prosody) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureStarted(ctx); err != nil {
		return &RenderError{Op: "play", Err: err}
	}

	result, err := s.provider.Synthesize(ctx, text, prosody)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &RenderError{Op: "synthesize", Err: err}
	}

	cfg := s.sink.Config()
	pcm := result.Audio
	if result.Format.SampleRate != 0 && result.Format.SampleRate != cfg.SampleRate {
		pcm = audioio.ResampleBytes(pcm, result.Format.SampleRate, cfg.SampleRate)
	}

	step := cfg.BufferBytes()
	if step <= 0 {
		step = len(pcm)
	}
	for off := 0; off < len(pcm); off += step {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+step, len(pcm))
		chunk := audioio.ChunkFromBytes(pcm[off:end], cfg.SampleRate, cfg.Channels)
		if err := s.sink.Write(ctx, chunk); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &RenderError{Op: "play", Err: err}
		}
	}

	if err := s.sink.Flush(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &RenderError{Op: "play", Err: err}
	}

	s.logger.Debug("spoke", "chars", len(text), "audio", result.Duration, "latency_ms", result.LatencyMs)
	return nil
}

func (s *Speaker) ensureStarted(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.sink.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Stop interrupts the current line, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel(ErrInterrupted)
	}
}

// Close stops playback and releases the sink and provider.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()
	s.play.Lock()
	defer s.play.Unlock()

	err := s.sink.Close()
	if perr := s.provider.Close(); err == nil {
		err = perr
	}
	return err
}

var _ Port = (*Speaker)(nil)
