package capture

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Mock implements Port for testing.
type Mock struct {
	// ListenFunc is called when Listen is invoked.
	// If nil, results are taken from Script in order; an exhausted script
	// yields silence.
	ListenFunc func(ctx context.Context, threshold time.Duration) (Result, error)

	// Script is consumed one entry per Listen when ListenFunc is nil.
	Script []Step

	mu      sync.Mutex
	calls   []time.Duration
	stops   int
	pending chan struct{}
}

// Step is one scripted Listen outcome.
type Step struct {
	Result Result
	Err    error
	Delay  time.Duration
}

// NewMock creates a mock that returns the given steps in order.
func NewMock(steps ...Step) *Mock {
	return &Mock{Script: steps}
}

// SpeechStep is shorthand for a scripted speech result.
func SpeechStep(text string) Step { return Step{Result: Speech(text)} }

// SilenceStep is shorthand for a scripted silence result.
func SilenceStep() Step { return Step{Result: Silence()} }

// ErrorStep is shorthand for a scripted failure.
func ErrorStep(err error) Step { return Step{Err: err} }

// Listen records the call and returns the next scripted outcome.
func (m *Mock) Listen(ctx context.Context, threshold time.Duration) (Result, error) {
	m.mu.Lock()
	if m.pending != nil {
		m.mu.Unlock()
		return Result{}, ErrConcurrentListen
	}
	stop := make(chan struct{})
	m.pending = stop
	m.calls = append(m.calls, threshold)
	fn := m.ListenFunc
	var step Step
	if fn == nil {
		if len(m.Script) > 0 {
			step = m.Script[0]
			m.Script = m.Script[1:]
		} else {
			step = SilenceStep()
		}
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.pending = nil
		m.mu.Unlock()
	}()

	if fn != nil {
		return fn(ctx, threshold)
	}
	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-stop:
			return Result{}, ErrStopped
		}
	}
	return step.Result, step.Err
}

// Stop aborts a scripted Listen that is still waiting on its delay.
func (m *Mock) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	if m.pending != nil {
		select {
		case <-m.pending:
		default:
			close(m.pending)
		}
	}
}

// CallCount returns the number of Listen calls.
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

// LastThreshold returns the threshold of the most recent Listen call.
func (m *Mock) LastThreshold() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return 0
	}
	return m.calls[len(m.calls)-1]
}

// MockRecognizer implements Recognizer by replaying timed fragments.
type MockRecognizer struct {
	// Fragments are emitted in order, each after its Delay.
	Fragments []TimedFragment

	// Hold keeps the stream open after the last fragment instead of
	// closing it, so the silence deadline decides the outcome.
	Hold bool

	// StartErr is returned from Start when set.
	StartErr error

	mu     sync.Mutex
	cancel context.CancelFunc
	starts int
	stops  int
}

// TimedFragment is a fragment emitted after Delay.
type TimedFragment struct {
	Delay time.Duration
	Fragment
}

// Start begins replaying fragments on a new channel.
func (r *MockRecognizer) Start(ctx context.Context) (<-chan Fragment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.StartErr != nil {
		return nil, r.StartErr
	}
	if r.cancel != nil {
		return nil, errors.New("mock recognizer: already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	out := make(chan Fragment)
	frags := append([]TimedFragment(nil), r.Fragments...)
	hold := r.Hold
	go func() {
		defer func() {
			if !hold {
				close(out)
			}
		}()
		for _, tf := range frags {
			select {
			case <-time.After(tf.Delay):
			case <-ctx.Done():
				return
			}
			select {
			case out <- tf.Fragment:
			case <-ctx.Done():
				return
			}
		}
		if hold {
			<-ctx.Done()
		}
	}()
	return out, nil
}

// Stop ends the replay.
func (r *MockRecognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	return nil
}

// Starts returns the number of Start calls.
func (r *MockRecognizer) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// Verify mocks implement their interfaces at compile time.
var (
	_ Port       = (*Mock)(nil)
	_ Recognizer = (*MockRecognizer)(nil)
)
