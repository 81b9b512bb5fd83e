package capture

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrConcurrentListen is returned when Listen is called while a listen
	// attempt is already in flight.
	ErrConcurrentListen = errors.New("capture: already listening")

	// ErrStopped is returned by a Listen call aborted with Stop.
	ErrStopped = errors.New("capture: listen stopped")

	// ErrNoRecognizer is returned when a Listener has no recognizer.
	ErrNoRecognizer = errors.New("capture: recognizer required")
)

// CaptureError reports a recognizer failure during a listen attempt.
type CaptureError struct {
	// Op is the failing step: "start" or "recognize".
	Op  string
	Err error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *CaptureError) Unwrap() error {
	return e.Err
}
