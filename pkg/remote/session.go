package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-interview/pkg/capture"
	"github.com/teslashibe/go-interview/pkg/protocol"
	"github.com/teslashibe/go-interview/pkg/render"
)

// await returns the session's connection, waiting for one to attach.
func (d *Directory) await(ctx context.Context, sessionID string) (*Conn, error) {
	timer := time.NewTimer(d.connectTimeout)
	defer timer.Stop()

	for {
		d.mu.RLock()
		conn := d.conns[sessionID]
		changed := d.changed
		d.mu.RUnlock()
		if conn != nil {
			return conn, nil
		}

		select {
		case <-changed:
		case <-timer.C:
			return nil, ErrNotConnected
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Recognizer implements capture.Recognizer with the browser's speech
// recognition.
type Recognizer struct {
	dir       *Directory
	sessionID string
	language  string

	mu   sync.Mutex
	conn *Conn
	id   string
}

// Recognizer returns the recognizer for sessionID.
func (d *Directory) Recognizer(sessionID, language string) *Recognizer {
	return &Recognizer{dir: d, sessionID: sessionID, language: language}
}

// Start asks the browser to recognize one utterance.
func (r *Recognizer) Start(ctx context.Context) (<-chan capture.Fragment, error) {
	conn, err := r.dir.await(ctx, r.sessionID)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ch := conn.openListen(id)
	if ch == nil {
		return nil, ErrDisconnected
	}

	msg, err := protocol.NewListenMessage(id, r.language)
	if err == nil {
		err = conn.Send(msg)
	}
	if err != nil {
		conn.endListen(id, nil)
		return nil, fmt.Errorf("remote: send listen: %w", err)
	}

	r.mu.Lock()
	r.conn, r.id = conn, id
	r.mu.Unlock()
	return ch, nil
}

// Stop ends the current recognition request.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	conn, id := r.conn, r.id
	r.conn, r.id = nil, ""
	r.mu.Unlock()

	if conn == nil {
		return nil
	}
	conn.endListen(id, nil)
	msg, err := protocol.NewStopMessage(id)
	if err != nil {
		return err
	}
	if err := conn.Send(msg); err != nil {
		r.dir.logger.Debug("send stop failed", "session", r.sessionID, "error", err)
	}
	return nil
}

// Renderer implements render.Port with the browser's speech synthesis.
type Renderer struct {
	dir       *Directory
	sessionID string

	mu     sync.Mutex
	cancel context.CancelCauseFunc
}

// Renderer returns the renderer for sessionID.
func (d *Directory) Renderer(sessionID string) *Renderer {
	return &Renderer{dir: d, sessionID: sessionID}
}

// Speak asks the browser to speak text and waits for it to finish. A newer
// call or Stop interrupts it.
func (r *Renderer) Speak(ctx context.Context, text string, prosody render.Prosody) error {
	if strings.TrimSpace(text) == "" {
		return &render.RenderError{Op: "synthesize", Err: render.ErrEmptyText}
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel(render.ErrInterrupted)
	}
	sctx, cancel := context.WithCancelCause(ctx)
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel(nil)

	conn, err := r.dir.await(sctx, r.sessionID)
	if err != nil {
		return r.interrupted(ctx, sctx, &render.RenderError{Op: "play", Err: err})
	}

	id := uuid.NewString()
	done := conn.openSpeak(id)
	if done == nil {
		return &render.RenderError{Op: "play", Err: ErrDisconnected}
	}

	p := prosody.Normalize()
	msg, err := protocol.NewSpeakMessage(id, text, p.Rate, p.Pitch, p.Volume)
	if err == nil {
		err = conn.Send(msg)
	}
	if err != nil {
		conn.finishSpeak(id, nil)
		return &render.RenderError{Op: "play", Err: err}
	}

	select {
	case err := <-done:
		if err != nil {
			return &render.RenderError{Op: "play", Err: err}
		}
		return nil
	case <-sctx.Done():
		conn.finishSpeak(id, nil)
		if stop, err := protocol.NewStopMessage(id); err == nil {
			conn.Send(stop)
		}
		return r.interrupted(ctx, sctx, sctx.Err())
	}
}

func (r *Renderer) interrupted(parent, sctx context.Context, fallback error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(context.Cause(sctx), render.ErrInterrupted) {
		return render.ErrInterrupted
	}
	return fallback
}

// Stop interrupts the current line.
func (r *Renderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel(render.ErrInterrupted)
		r.cancel = nil
	}
}

// Verify interface compliance at compile time.
var (
	_ capture.Recognizer = (*Recognizer)(nil)
	_ render.Port        = (*Renderer)(nil)
)
