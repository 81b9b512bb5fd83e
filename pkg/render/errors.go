package render

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrInterrupted is returned by a Speak that was superseded or stopped.
	ErrInterrupted = errors.New("render: interrupted")

	// ErrEmptyText is returned when asked to speak blank text.
	ErrEmptyText = errors.New("render: text is empty")

	// ErrClosed is returned after the speaker has been closed.
	ErrClosed = errors.New("render: speaker closed")
)

// RenderError reports a synthesis or playback failure.
type RenderError struct {
	// Op is "synthesize" or "play".
	Op  string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
