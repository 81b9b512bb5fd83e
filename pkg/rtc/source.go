package rtc

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"gopkg.in/hraban/opus.v2"

	"github.com/teslashibe/go-interview/pkg/audioio"
)

// Decoder turns one Opus packet into PCM16 samples.
type Decoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// NewOpusDecoder creates a libopus decoder at 48 kHz.
func NewOpusDecoder(channels int) (Decoder, error) {
	dec, err := opus.NewDecoder(OpusSampleRate, channels)
	if err != nil {
		return nil, err
	}
	return dec, nil
}

// Source is an audioio.Source fed by an incoming WebRTC audio track.
// Audio that arrives while the source is stopped is discarded.
type Source struct {
	cfg     audioio.Config
	decoder Decoder
	logger  *slog.Logger
	buffer  int

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan audioio.Chunk
	frame    []int16
	lastSeq  uint16
	seenSeq  bool

	packets   atomic.Int64
	lost      atomic.Int64
	decodeErr atomic.Int64
	overruns  atomic.Int64
	samples   atomic.Int64
}

// NewSource creates a source decoding with dec.
func NewSource(dec Decoder, channels, buffer int, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := audioio.DefaultConfig()
	cfg.SampleRate = OpusSampleRate
	cfg.Channels = channels

	ch := make(chan audioio.Chunk)
	close(ch)
	return &Source{
		cfg:      cfg,
		decoder:  dec,
		logger:   logger.With("component", "rtc.source"),
		buffer:   buffer,
		streamCh: ch,
		frame:    make([]int16, maxFrameSize*channels),
	}
}

// Start begins delivering decoded audio.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}
	s.running = true
	s.streamCh = make(chan audioio.Chunk, s.buffer)
	return nil
}

// Stop halts delivery and closes the stream. It is safe to call repeatedly.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.streamCh)
	return nil
}

// Read returns the next decoded chunk.
func (s *Source) Read(ctx context.Context) (audioio.Chunk, error) {
	stream := s.Stream()
	select {
	case <-ctx.Done():
		return audioio.Chunk{}, ctx.Err()
	case chunk, ok := <-stream:
		if !ok {
			return audioio.Chunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the current chunk channel.
func (s *Source) Stream() <-chan audioio.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the decoded audio format.
func (s *Source) Config() audioio.Config { return s.cfg }

// Name returns "webrtc".
func (s *Source) Name() string { return "webrtc" }

// Close stops the source permanently.
func (s *Source) Close() error {
	s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Stats returns ingest statistics.
func (s *Source) Stats() audioio.SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return audioio.SourceStats{
		ChunksRead:  s.packets.Load(),
		SamplesRead: s.samples.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     s.Name(),
	}
}

// Lost returns the number of packets missing from the sequence.
func (s *Source) Lost() int64 { return s.lost.Load() }

// feed decodes one RTP packet and delivers it when running.
func (s *Source) feed(pkt *rtp.Packet) {
	s.packets.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seenSeq {
		if gap := pkt.SequenceNumber - s.lastSeq; gap > 1 && gap < 1000 {
			s.lost.Add(int64(gap - 1))
		}
	}
	s.lastSeq, s.seenSeq = pkt.SequenceNumber, true

	if len(pkt.Payload) == 0 {
		return
	}
	n, err := s.decoder.Decode(pkt.Payload, s.frame)
	if err != nil {
		if s.decodeErr.Add(1) <= 5 {
			s.logger.Warn("opus decode failed", "error", err, "payload", len(pkt.Payload))
		}
		return
	}
	if !s.running || n == 0 {
		return
	}

	samples := make([]int16, n*s.cfg.Channels)
	copy(samples, s.frame)
	chunk := audioio.Chunk{Samples: samples, SampleRate: OpusSampleRate, Channels: s.cfg.Channels}

	select {
	case s.streamCh <- chunk:
		s.samples.Add(int64(n))
	default:
		s.overruns.Add(1)
	}
}

// consume feeds packets from read until it fails.
func (s *Source) consume(read func() (*rtp.Packet, error)) error {
	for {
		pkt, err := read()
		if err != nil {
			return err
		}
		s.feed(pkt)
	}
}

// Verify Source implements audioio.SourceWithStats at compile time.
var _ audioio.SourceWithStats = (*Source)(nil)
