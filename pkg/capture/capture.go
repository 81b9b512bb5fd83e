// Package capture turns a speech recognizer's fragment stream into one
// utterance-or-silence result per listen attempt.
//
// A Listener owns a SilenceWatch for the duration of a single Listen call.
// Every speech fragment pushes the deadline out; when the deadline passes
// the attempt settles as speech (if anything was said) or as silence.
//
//	l := capture.NewListener(recognizer)
//	res, err := l.Listen(ctx, 2500*time.Millisecond)
//	if res.Kind == capture.KindSilence { ... }
package capture

import (
	"context"
	"time"
)

// Kind classifies a listen result.
type Kind int

const (
	// KindSpeech means the human said something; Result.Text is non-empty.
	KindSpeech Kind = iota

	// KindSilence means the silence threshold elapsed with nothing said.
	KindSilence
)

func (k Kind) String() string {
	switch k {
	case KindSpeech:
		return "speech"
	case KindSilence:
		return "silence"
	default:
		return "unknown"
	}
}

// Result is the outcome of one listen attempt.
type Result struct {
	Kind Kind
	Text string
}

// Speech returns a speech result.
func Speech(text string) Result { return Result{Kind: KindSpeech, Text: text} }

// Silence returns a silence result.
func Silence() Result { return Result{Kind: KindSilence} }

// Port is the speech capture contract the engine depends on.
type Port interface {
	// Listen blocks until the human finishes an utterance, the silence
	// threshold elapses, or an error occurs. Exactly one of those happens
	// per call. A second concurrent call fails with ErrConcurrentListen.
	Listen(ctx context.Context, threshold time.Duration) (Result, error)

	// Stop aborts an in-flight Listen. It is a no-op when idle.
	Stop()
}

// Fragment is one recognition event.
type Fragment struct {
	// Text is the recognized text of this fragment.
	Text string

	// Final marks text the recognizer will not revise.
	Final bool

	// Activity marks detected voice whose text is not known yet. It pushes
	// the silence deadline out without contributing text.
	Activity bool

	// Err reports a recognition failure; it ends the attempt.
	Err error
}

// Recognizer produces speech fragments until stopped or the stream ends.
// The channel is closed when recognition ends naturally.
type Recognizer interface {
	Start(ctx context.Context) (<-chan Fragment, error)
	Stop() error
}
