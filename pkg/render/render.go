// Package render speaks interviewer lines aloud.
//
// A Port plays one utterance at a time. Speak blocks until playback has
// finished; a newer Speak supersedes the one in flight, which returns
// ErrInterrupted. Stop silences the current line and is safe to call at any
// time.
package render

import (
	"context"

	"github.com/teslashibe/go-interview/pkg/tts"
)

// Prosody controls rate, pitch and volume of a spoken line.
type Prosody = tts.Prosody

// DefaultProsody is normal rate, pitch and full volume.
func DefaultProsody() Prosody {
	return tts.DefaultProsody()
}

// Port is the speech output used by the interview engine.
type Port interface {
	// Speak returns once text has been played completely.
	Speak(ctx context.Context, text string, prosody Prosody) error

	// Stop cancels playback immediately. It is a no-op when idle.
	Stop()
}
