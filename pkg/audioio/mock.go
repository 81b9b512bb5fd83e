package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource emits one buffer of synthetic audio per BufferDuration:
// silence by default, a tone with WithSineWave, or whatever was queued
// with Push.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	freq float64
	amp  float64

	mu      sync.Mutex
	running bool
	closed  bool
	out     chan Chunk
	stop    chan struct{}
	queued  [][]int16
	phase   float64

	chunks   atomic.Int64
	samples  atomic.Int64
	overruns atomic.Int64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave generates a tone at freq Hz with amplitude amp (0..1).
func WithSineWave(freq, amp float64) MockSourceOption {
	return func(m *MockSource) { m.freq, m.amp = freq, amp }
}

// NewMockSource creates a synthetic source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.mock"),
		out:    make(chan Chunk),
	}
	close(m.out)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Push queues samples to be emitted ahead of the synthetic signal.
func (m *MockSource) Push(samples []int16) {
	m.mu.Lock()
	m.queued = append(m.queued, samples)
	m.mu.Unlock()
}

func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}
	m.running = true
	m.out = make(chan Chunk, 16)
	m.stop = make(chan struct{})
	go m.loop(ctx, m.out, m.stop)
	return nil
}

func (m *MockSource) loop(ctx context.Context, out chan Chunk, stop chan struct{}) {
	defer close(out)

	tick := time.NewTicker(m.cfg.BufferDuration)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			m.halt(stop)
			return
		case <-stop:
			return
		case <-tick.C:
		}

		chunk := m.next()
		select {
		case out <- chunk:
			m.chunks.Add(1)
			m.samples.Add(int64(len(chunk.Samples)))
		default:
			m.overruns.Add(1)
		}
	}
}

func (m *MockSource) next() Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()

	chunk := Chunk{SampleRate: m.cfg.SampleRate, Channels: m.cfg.Channels}
	if len(m.queued) > 0 {
		chunk.Samples, m.queued = m.queued[0], m.queued[1:]
		return chunk
	}

	frames := m.cfg.BufferSize()
	chunk.Samples = make([]int16, frames*m.cfg.Channels)
	if m.freq <= 0 {
		return chunk
	}
	for i := 0; i < frames; i++ {
		v := int16(m.amp * math.MaxInt16 * math.Sin(2*math.Pi*m.freq*m.phase/float64(m.cfg.SampleRate)))
		for c := 0; c < m.cfg.Channels; c++ {
			chunk.Samples[i*m.cfg.Channels+c] = v
		}
		m.phase = math.Mod(m.phase+1, float64(m.cfg.SampleRate))
	}
	return chunk
}

func (m *MockSource) halt(stop chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running && m.stop == stop {
		m.running = false
		close(stop)
	}
}

func (m *MockSource) Stop() error {
	m.mu.Lock()
	stop := m.stop
	m.mu.Unlock()
	if stop != nil {
		m.halt(stop)
	}
	return nil
}

func (m *MockSource) Read(ctx context.Context) (Chunk, error) {
	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	case chunk, ok := <-m.Stream():
		if !ok {
			return Chunk{}, io.EOF
		}
		return chunk, nil
	}
}

func (m *MockSource) Stream() <-chan Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out
}

func (m *MockSource) Config() Config { return m.cfg }
func (m *MockSource) Name() string   { return string(BackendMock) }

func (m *MockSource) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return SourceStats{
		ChunksRead:  m.chunks.Load(),
		SamplesRead: m.samples.Load(),
		Overruns:    m.overruns.Load(),
		Running:     running,
		Backend:     string(BackendMock),
	}
}

var _ SourceWithStats = (*MockSource)(nil)

// MockSink records everything written to it. Writes fail with
// ErrSinkStopped until Start and after Stop.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	pending int64
	played  []int16
	clears  int

	chunks  atomic.Int64
	samples atomic.Int64
}

// NewMockSink creates a recording sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger.With("component", "audioio.mock")}
}

func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

func (m *MockSink) Stop() error {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

func (m *MockSink) Write(ctx context.Context, chunk Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	if !m.running {
		return ErrSinkStopped
	}
	m.played = append(m.played, chunk.Samples...)
	m.pending += int64(len(chunk.Samples))
	m.chunks.Add(1)
	m.samples.Add(int64(len(chunk.Samples)))
	return nil
}

// Flush returns immediately; queued audio counts as played.
func (m *MockSink) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.pending = 0
	m.mu.Unlock()
	return nil
}

func (m *MockSink) Clear() error {
	m.mu.Lock()
	m.pending = 0
	m.clears++
	m.mu.Unlock()
	return nil
}

// Played returns a copy of every sample written so far.
func (m *MockSink) Played() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int16(nil), m.played...)
}

// Clears reports how many times Clear was called.
func (m *MockSink) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

func (m *MockSink) Config() Config { return m.cfg }
func (m *MockSink) Name() string   { return string(BackendMock) }

func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.running = false
	m.mu.Unlock()
	return nil
}

func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SinkStats{
		ChunksWritten:   m.chunks.Load(),
		SamplesWritten:  m.samples.Load(),
		Running:         m.running,
		Backend:         string(BackendMock),
		BufferedSamples: m.pending,
	}
}

var _ SinkWithStats = (*MockSink)(nil)
