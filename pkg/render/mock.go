package render

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Mock implements Port for testing with the same last-call-wins semantics
// as Speaker.
type Mock struct {
	// SpeakFunc, when set, replaces the default playback simulation. It
	// receives a context that is cancelled when the call is superseded.
	SpeakFunc func(ctx context.Context, text string, prosody Prosody) error

	// Delay is how long a simulated playback takes.
	Delay time.Duration

	mu     sync.Mutex
	calls  []MockCall
	cancel context.CancelCauseFunc
	stops  int
}

// MockCall records one Speak invocation.
type MockCall struct {
	Text    string
	Prosody Prosody
	Time    time.Time
}

// NewMock returns a mock whose playback takes delay.
func NewMock(delay time.Duration) *Mock {
	return &Mock{Delay: delay}
}

// Speak records the call and simulates playback.
func (m *Mock) Speak(ctx context.Context, text string, prosody Prosody) error {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Text: text, Prosody: prosody, Time: time.Now()})
	if m.cancel != nil {
		m.cancel(ErrInterrupted)
	}
	sctx, cancel := context.WithCancelCause(ctx)
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel(nil)

	if m.SpeakFunc != nil {
		return m.SpeakFunc(sctx, text, prosody)
	}

	timer := time.NewTimer(m.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-sctx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(context.Cause(sctx), ErrInterrupted) {
			return ErrInterrupted
		}
		return sctx.Err()
	}
}

// Stop interrupts the current call.
func (m *Mock) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	if m.cancel != nil {
		m.cancel(ErrInterrupted)
		m.cancel = nil
	}
}

// Spoken returns the text of every Speak call in order.
func (m *Mock) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Text
	}
	return out
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Speak calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// StopCount returns the number of Stop calls.
func (m *Mock) StopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

var _ Port = (*Mock)(nil)
