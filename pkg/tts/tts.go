// Package tts turns interviewer lines into PCM audio.
//
// Providers: ElevenLabs, OpenAI and Google Cloud Text-to-Speech, plus Chain
// for fallback and Mock for tests. Every provider returns mono PCM16 so the
// render layer can play it without decoding.
//
//	provider, _ := tts.NewElevenLabs(
//	    tts.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    tts.WithVoice("charlotte"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Tell me about yourself.", tts.DefaultProsody())
package tts

import (
	"context"
	"math"
	"time"
)

// Provider synthesizes speech.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string, prosody Prosody) (*AudioResult, error)

	// Name identifies the provider in logs and errors.
	Name() string

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Prosody controls how a line is spoken. All three are multipliers where 1.0
// is the provider's natural voice.
type Prosody struct {
	Rate   float64 `json:"rate" yaml:"rate"`
	Pitch  float64 `json:"pitch" yaml:"pitch"`
	Volume float64 `json:"volume" yaml:"volume"`
}

// DefaultProsody is normal rate, pitch and full volume.
func DefaultProsody() Prosody {
	return Prosody{Rate: 1.0, Pitch: 1.0, Volume: 1.0}
}

// Normalize fills zero fields with defaults and clamps to the ranges the
// providers accept: rate 0.25-4, pitch 0.5-2, volume 0-1.
func (p Prosody) Normalize() Prosody {
	def := DefaultProsody()
	if p.Rate == 0 {
		p.Rate = def.Rate
	}
	if p.Pitch == 0 {
		p.Pitch = def.Pitch
	}
	if p.Volume == 0 {
		p.Volume = def.Volume
	}
	p.Rate = clamp(p.Rate, 0.25, 4)
	p.Pitch = clamp(p.Pitch, 0.5, 2)
	p.Volume = clamp(p.Volume, 0, 1)
	return p
}

// Semitones converts the pitch multiplier to a semitone offset.
func (p Prosody) Semitones() float64 {
	return 12 * math.Log2(p.Normalize().Pitch)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	// Audio is little-endian PCM16 in Format.
	Audio []byte

	Format AudioFormat

	// Duration is the playback length implied by the sample count.
	Duration time.Duration

	CharCount int

	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding names a PCM output format.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000"
	EncodingPCM22 Encoding = "pcm_22050"
	EncodingPCM24 Encoding = "pcm_24000"
	EncodingPCM44 Encoding = "pcm_44100"
)

// SampleRateFromEncoding extracts the sample rate from an encoding.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	case EncodingPCM44:
		return 44100
	default:
		return 24000
	}
}

func pcmFormat(enc Encoding) AudioFormat {
	return AudioFormat{
		Encoding:   enc,
		SampleRate: SampleRateFromEncoding(enc),
		Channels:   1,
		BitDepth:   16,
	}
}

// PCMDuration returns the playback length of n bytes of mono PCM16.
func PCMDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(n/2) / float64(sampleRate) * float64(time.Second))
}

// ApplyVolume scales PCM16 samples in place by gain (0-1).
// Providers without a native volume control use it.
func ApplyVolume(pcm []byte, gain float64) {
	if gain >= 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		s = int16(float64(s) * gain)
		pcm[i] = byte(s)
		pcm[i+1] = byte(uint16(s) >> 8)
	}
}

// VoiceSettings tunes ElevenLabs voices.
type VoiceSettings struct {
	// Stability controls voice consistency (0.0-1.0).
	Stability float64

	// SimilarityBoost controls closeness to the source voice (0.0-1.0).
	SimilarityBoost float64

	Style        float64
	SpeakerBoost bool
}

// DefaultVoiceSettings returns calm, consistent interviewer settings.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.6,
		SimilarityBoost: 0.75,
		SpeakerBoost:    true,
	}
}
