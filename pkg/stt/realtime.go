// Package stt streams microphone audio to a realtime transcription service
// and exposes the result as a capture.Recognizer.
//
// Each Start opens a transcription session over a websocket, pumps PCM16
// from an audioio.Source and turns server events into fragments:
// transcription deltas become interim text, completed items become final
// text and server VAD speech events become voice activity.
package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-interview/pkg/audioio"
	"github.com/teslashibe/go-interview/pkg/capture"
)

// Realtime implements capture.Recognizer over the OpenAI realtime
// transcription API.
type Realtime struct {
	cfg    *Config
	source audioio.Source
	dialer *websocket.Dialer
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	wsMu   sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRealtime creates a recognizer reading audio from source.
func NewRealtime(source audioio.Source, opts ...Option) (*Realtime, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, ErrNoSource
	}

	return &Realtime{
		cfg:    cfg,
		source: source,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: cfg.Logger.With("component", "stt.realtime"),
	}, nil
}

// Start opens a transcription session and begins streaming audio.
func (r *Realtime) Start(ctx context.Context) (<-chan capture.Fragment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		return nil, ErrAlreadyStarted
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := r.dialer.DialContext(ctx, r.cfg.URL+"?intent=transcription", header)
	if err != nil {
		return nil, fmt.Errorf("stt: connect: %w", err)
	}

	if err := conn.WriteJSON(r.setup()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("stt: configure session: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := r.source.Start(runCtx); err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("stt: start audio: %w", err)
	}

	r.conn = conn
	r.cancel = cancel

	out := make(chan capture.Fragment, 16)
	r.wg.Add(2)
	go r.pump(runCtx, conn)
	go r.read(runCtx, conn, out)

	r.logger.Debug("transcription session opened", "model", r.cfg.Model)
	return out, nil
}

// Stop closes the session and stops audio capture. It is safe to call when
// not started.
func (r *Realtime) Stop() error {
	r.mu.Lock()
	conn, cancel := r.conn, r.cancel
	r.conn, r.cancel = nil, nil
	r.mu.Unlock()

	if conn == nil {
		return nil
	}
	cancel()
	err := r.source.Stop()

	r.wsMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	r.wsMu.Unlock()
	conn.Close()

	r.wg.Wait()
	return err
}

func (r *Realtime) setup() sessionUpdate {
	return sessionUpdate{
		Type: eventSessionUpdate,
		Session: transcriptionSetup{
			InputAudioFormat: "pcm16",
			InputAudioTranscription: transcriptionModel{
				Model:    r.cfg.Model,
				Language: r.cfg.Language,
			},
			TurnDetection: turnDetection{
				Type:              "server_vad",
				Threshold:         r.cfg.VADThreshold,
				PrefixPaddingMs:   r.cfg.PrefixPadding.Milliseconds(),
				SilenceDurationMs: r.cfg.SilenceDuration.Milliseconds(),
			},
			NoiseReduction: &noiseReductionType{Type: "near_field"},
		},
	}
}

// pump forwards microphone audio as mono PCM16 at the API sample rate.
func (r *Realtime) pump(ctx context.Context, conn *websocket.Conn) {
	defer r.wg.Done()

	stream := r.source.Stream()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-stream:
			if !ok {
				return
			}
			samples := audioio.Downmix(chunk.Samples, chunk.Channels)
			samples = audioio.Resample(samples, chunk.SampleRate, DefaultSampleRate)

			msg := audioAppend{
				Type:  eventAudioAppend,
				Audio: base64.StdEncoding.EncodeToString(audioio.Encode(samples)),
			}
			r.wsMu.Lock()
			err := conn.WriteJSON(msg)
			r.wsMu.Unlock()
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Warn("audio append failed", "error", err)
				}
				return
			}
		}
	}
}

// read turns server events into fragments. The channel is closed when the
// connection ends.
func (r *Realtime) read(ctx context.Context, conn *websocket.Conn, out chan<- capture.Fragment) {
	defer r.wg.Done()
	defer close(out)

	partial := make(map[string]*strings.Builder)
	emit := func(f capture.Fragment) bool {
		select {
		case out <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				emit(capture.Fragment{Err: fmt.Errorf("stt: read: %w", err)})
			}
			return
		}

		var ev serverEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			r.logger.Debug("unparseable event", "error", err)
			continue
		}

		switch ev.Type {
		case eventSpeechStarted, eventSpeechStopped:
			if !emit(capture.Fragment{Activity: true}) {
				return
			}

		case eventDelta:
			b := partial[ev.ItemID]
			if b == nil {
				b = &strings.Builder{}
				partial[ev.ItemID] = b
			}
			b.WriteString(ev.Delta)
			if !emit(capture.Fragment{Text: b.String()}) {
				return
			}

		case eventCompleted:
			delete(partial, ev.ItemID)
			if !emit(capture.Fragment{Text: ev.Transcript, Final: true}) {
				return
			}

		case eventFailed:
			delete(partial, ev.ItemID)
			r.logger.Warn("transcription failed", "item", ev.ItemID, "error", ev.Error)

		case eventError:
			if ev.Error == nil {
				ev.Error = &EventError{Type: "unknown", Message: string(data)}
			}
			emit(capture.Fragment{Err: ev.Error})
			return
		}
	}
}

// Verify Realtime implements capture.Recognizer at compile time.
var _ capture.Recognizer = (*Realtime)(nil)
