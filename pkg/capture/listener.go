package capture

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Listener implements Port over a streaming Recognizer.
type Listener struct {
	rec    Recognizer
	cfg    *Config
	logger *slog.Logger

	mu     sync.Mutex
	active bool
	stopCh chan struct{}
}

// NewListener creates a listener reading fragments from rec.
func NewListener(rec Recognizer, opts ...Option) *Listener {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = DefaultThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Listener{
		rec:    rec,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "capture"),
	}
}

// Listen runs one listen attempt. See Port.
func (l *Listener) Listen(ctx context.Context, threshold time.Duration) (Result, error) {
	if l.rec == nil {
		return Result{}, ErrNoRecognizer
	}
	if threshold <= 0 {
		threshold = l.cfg.DefaultThreshold
	}

	l.mu.Lock()
	if l.active {
		l.mu.Unlock()
		return Result{}, ErrConcurrentListen
	}
	stopCh := make(chan struct{})
	l.active = true
	l.stopCh = stopCh
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.active = false
		l.stopCh = nil
		l.mu.Unlock()
	}()

	recCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	frags, err := l.rec.Start(recCtx)
	if err != nil {
		return Result{}, &CaptureError{Op: "start", Err: err}
	}
	defer func() {
		if err := l.rec.Stop(); err != nil {
			l.logger.Debug("recognizer stop failed", "error", err)
		}
	}()

	watch := newSilenceWatch(threshold, l.cfg.Arm)
	defer watch.stop()

	var u utterance
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()

		case <-stopCh:
			return Result{}, ErrStopped

		case <-watch.C():
			res := u.result()
			l.logger.Debug("silence deadline", "kind", res.Kind, "activity", watch.activity)
			return res, nil

		case frag, ok := <-frags:
			if !ok {
				res := u.result()
				l.logger.Debug("recognition ended", "kind", res.Kind)
				return res, nil
			}
			if frag.Err != nil {
				return Result{}, &CaptureError{Op: "recognize", Err: frag.Err}
			}
			if u.add(frag) || frag.Activity {
				watch.touch()
			}
		}
	}
}

// Stop aborts the in-flight Listen, if any.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopCh != nil {
		close(l.stopCh)
		l.stopCh = nil
	}
}

// Listening reports whether a listen attempt is in flight.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// utterance accumulates fragment text for one attempt. Interim text is
// replaced by each newer interim and dropped once a final arrives.
type utterance struct {
	finals  []string
	interim string
}

func (u *utterance) add(f Fragment) bool {
	text := strings.TrimSpace(f.Text)
	if text == "" {
		return false
	}
	if f.Final {
		u.finals = append(u.finals, text)
		u.interim = ""
	} else {
		u.interim = text
	}
	return true
}

// result settles the attempt. Pending interim text counts as speech.
func (u *utterance) result() Result {
	parts := u.finals
	if u.interim != "" {
		parts = append(slices.Clone(parts), u.interim)
	}
	if text := strings.Join(parts, " "); text != "" {
		return Speech(text)
	}
	return Silence()
}

// Verify Listener implements Port at compile time.
var _ Port = (*Listener)(nil)
