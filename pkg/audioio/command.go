package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSinkStopped is returned when writing to a sink that is not running.
var ErrSinkStopped = errors.New("audioio: sink not running")

// CommandSource captures raw PCM16 from the stdout of a recorder process
// such as arecord or rec.
type CommandSource struct {
	cfg    Config
	argv   []string
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	cmd      *exec.Cmd
	streamCh chan Chunk
	stopCh   chan struct{}
	done     chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// NewCommandSource creates a source running argv on Start.
func NewCommandSource(cfg Config, argv []string, logger *slog.Logger) *CommandSource {
	if logger == nil {
		logger = slog.Default()
	}
	ch := make(chan Chunk)
	close(ch)
	return &CommandSource{
		cfg:      cfg,
		argv:     argv,
		logger:   logger.With("component", "audioio.source", "command", argv[0]),
		streamCh: ch,
	}
}

// Start launches the recorder.
func (s *CommandSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	cmd := exec.Command(s.argv[0], s.argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("recorder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.argv[0], err)
	}

	s.cmd = cmd
	s.running = true
	s.streamCh = make(chan Chunk, 10)
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})

	go s.captureLoop(ctx, cmd, stdout, s.streamCh, s.stopCh, s.done)

	s.logger.Info("audio source started", "sample_rate", s.cfg.SampleRate)
	return nil
}

func (s *CommandSource) captureLoop(ctx context.Context, cmd *exec.Cmd, r io.Reader, out chan<- Chunk, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(out)
	defer cmd.Wait()

	buf := make([]byte, s.cfg.BufferBytes())
	for {
		n, err := io.ReadFull(r, buf)
		n -= n % 2
		if n > 0 {
			chunk := ChunkFromBytes(buf[:n], s.cfg.SampleRate, s.cfg.Channels)
			select {
			case out <- chunk:
				s.chunksRead.Add(1)
				s.samplesRead.Add(int64(len(chunk.Samples)))
			case <-stop:
				return
			case <-ctx.Done():
				cmd.Process.Kill()
				return
			default:
				s.overruns.Add(1)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Debug("recorder read ended", "error", err)
			}
			return
		}
	}
}

// Stop kills the recorder and closes the stream.
func (s *CommandSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	cmd, done := s.cmd, s.done
	s.mu.Unlock()

	cmd.Process.Kill()
	<-done
	s.logger.Info("audio source stopped")
	return nil
}

// Read returns the next chunk or io.EOF once the recorder has exited.
func (s *CommandSource) Read(ctx context.Context) (Chunk, error) {
	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	case chunk, ok := <-s.Stream():
		if !ok {
			return Chunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the chunk channel of the current run.
func (s *CommandSource) Stream() <-chan Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *CommandSource) Config() Config { return s.cfg }

// Name returns the recorder binary name.
func (s *CommandSource) Name() string { return s.argv[0] }

// Close stops the source permanently.
func (s *CommandSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns source statistics.
func (s *CommandSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     s.argv[0],
	}
}

var _ SourceWithStats = (*CommandSource)(nil)

// CommandSink plays raw PCM16 by writing to the stdin of a player process
// such as aplay or play. The player is spawned on the first write and killed
// by Clear, so an interrupted line stops within one buffer.
type CommandSink struct {
	cfg    Config
	argv   []string
	logger *slog.Logger

	mu        sync.Mutex
	running   bool
	closed    bool
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	playUntil time.Time

	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
	underruns      atomic.Int64
}

// NewCommandSink creates a sink piping into argv.
func NewCommandSink(cfg Config, argv []string, logger *slog.Logger) *CommandSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSink{
		cfg:    cfg,
		argv:   argv,
		logger: logger.With("component", "audioio.sink", "command", argv[0]),
	}
}

// Start enables writes.
func (s *CommandSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	s.running = true
	return nil
}

// Stop kills the player and disables writes.
func (s *CommandSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.killLocked()
	return nil
}

// Write sends a chunk to the player, spawning it if needed.
func (s *CommandSink) Write(ctx context.Context, chunk Chunk) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return io.ErrClosedPipe
	}
	if !s.running {
		s.mu.Unlock()
		return ErrSinkStopped
	}
	if s.stdin == nil {
		if err := s.spawnLocked(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	stdin := s.stdin
	data := chunk.Bytes()

	now := time.Now()
	if s.playUntil.Before(now) {
		if !s.playUntil.IsZero() {
			s.underruns.Add(1)
		}
		s.playUntil = now
	}
	s.playUntil = s.playUntil.Add(s.cfg.BytesDuration(len(data)))
	s.mu.Unlock()

	if _, err := stdin.Write(data); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("write to %s: %w", s.argv[0], err)
	}
	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(chunk.Samples)))
	return nil
}

// Flush waits until the written audio has had time to play.
func (s *CommandSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	wait := time.Until(s.playUntil)
	s.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Clear kills the player, discarding whatever it had buffered.
func (s *CommandSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killLocked()
	return nil
}

func (s *CommandSink) spawnLocked() error {
	cmd := exec.Command(s.argv[0], s.argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("player pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.argv[0], err)
	}
	s.cmd = cmd
	s.stdin = stdin
	s.playUntil = time.Time{}
	return nil
}

func (s *CommandSink) killLocked() {
	if s.cmd == nil {
		return
	}
	s.stdin.Close()
	s.cmd.Process.Kill()
	go s.cmd.Wait()
	s.cmd = nil
	s.stdin = nil
	s.playUntil = time.Time{}
}

// Config returns the audio configuration.
func (s *CommandSink) Config() Config { return s.cfg }

// Name returns the player binary name.
func (s *CommandSink) Name() string { return s.argv[0] }

// Close stops the sink permanently.
func (s *CommandSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.running = false
	s.killLocked()
	return nil
}

// Stats returns sink statistics.
func (s *CommandSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	buffered := int64(time.Until(s.playUntil).Seconds() * float64(s.cfg.SampleRate))
	s.mu.Unlock()
	if buffered < 0 {
		buffered = 0
	}

	return SinkStats{
		ChunksWritten:   s.chunksWritten.Load(),
		SamplesWritten:  s.samplesWritten.Load(),
		Underruns:       s.underruns.Load(),
		Running:         running,
		Backend:         s.argv[0],
		BufferedSamples: buffered,
	}
}

var _ SinkWithStats = (*CommandSink)(nil)
