// Package audioio captures and plays raw PCM16 audio on the local machine.
//
// Backends:
//   - ALSA: arecord/aplay child processes (Linux)
//   - SoX: rec/play child processes (macOS and anything SoX supports)
//   - Mock: synthetic audio for tests and CI
//
// Local interview mode records the candidate through a Source and plays the
// interviewer through a Sink.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects the best backend for the platform.
	BackendAuto Backend = "auto"
	// BackendALSA pipes audio through arecord and aplay.
	BackendALSA Backend = "alsa"
	// BackendSoX pipes audio through SoX's rec and play.
	BackendSoX Backend = "sox"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the audio sample rate in Hz. Default: 24000.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels. Default: 1.
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the size of audio buffers. Default: 20ms.
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is the backend device name ("default", "plughw:1,0", ...).
	Device string `yaml:"device" json:"device"`

	// RecordCommand and PlayCommand override the backend's argv. The
	// command must read or write raw PCM16 in the configured format.
	RecordCommand []string `yaml:"record_command" json:"record_command,omitempty"`
	PlayCommand   []string `yaml:"play_command" json:"play_command,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     24000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of samples per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a buffer in bytes (int16 samples).
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}

// BytesDuration returns the playback time of n bytes in this format.
func (c *Config) BytesDuration(n int) time.Duration {
	perSecond := c.SampleRate * c.Channels * 2
	if perSecond == 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(perSecond) * float64(time.Second))
}
