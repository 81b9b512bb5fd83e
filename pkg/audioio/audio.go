package audioio

import (
	"context"
	"io"
	"time"
)

// Chunk is a block of interleaved PCM16 samples.
type Chunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// ChunkFromBytes decodes little-endian PCM16. A trailing odd byte is dropped.
func ChunkFromBytes(data []byte, sampleRate, channels int) Chunk {
	return Chunk{Samples: Decode(data), SampleRate: sampleRate, Channels: channels}
}

// Bytes encodes the samples as little-endian PCM16.
func (c Chunk) Bytes() []byte {
	return Encode(c.Samples)
}

// Duration is the playback time of the chunk.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Source is a microphone, or anything else that yields PCM16 chunks: a
// recorder process, a WebRTC track, a test tone.
type Source interface {
	// Start begins capture. Starting a running source is a no-op.
	Start(ctx context.Context) error
	// Stop ends capture and closes the stream. Safe to call repeatedly.
	Stop() error
	// Read blocks for the next chunk; io.EOF once stopped.
	Read(ctx context.Context) (Chunk, error)
	// Stream is closed when the source stops.
	Stream() <-chan Chunk
	Config() Config
	Name() string
	io.Closer
}

// Sink plays PCM16 chunks.
type Sink interface {
	Start(ctx context.Context) error
	Stop() error
	// Write queues a chunk; it may block while the device catches up.
	Write(ctx context.Context, chunk Chunk) error
	// Flush waits until queued audio has played.
	Flush(ctx context.Context) error
	// Clear drops queued audio. Used to cut a line short.
	Clear() error
	Config() Config
	Name() string
	io.Closer
}

// SourceStats counts what a source has produced.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"` // chunks dropped because nobody was reading
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats is a Source that reports counters.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// SinkStats counts what a sink has played.
type SinkStats struct {
	ChunksWritten   int64  `json:"chunks_written"`
	SamplesWritten  int64  `json:"samples_written"`
	Underruns       int64  `json:"underruns"` // gaps between consecutive writes
	Running         bool   `json:"running"`
	Backend         string `json:"backend"`
	BufferedSamples int64  `json:"buffered_samples"`
}

// SinkWithStats is a Sink that reports counters.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
