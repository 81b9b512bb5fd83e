package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrAlreadyStarted is returned by Start on an engine that left Idle.
	ErrAlreadyStarted = errors.New("engine: already started")

	// ErrNotStarted is returned by End on an engine that never started.
	ErrNotStarted = errors.New("engine: not started")

	// ErrDuplicateSession is returned when registering a session id twice.
	ErrDuplicateSession = errors.New("engine: session already registered")

	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("engine: session not found")
)

// FinalizationError reports a failure while finalizing a transcript. The
// session still reaches Finished.
type FinalizationError struct {
	SessionID string
	Err       error
}

func (e *FinalizationError) Error() string {
	return fmt.Sprintf("engine: finalize session %s: %v", e.SessionID, e.Err)
}

func (e *FinalizationError) Unwrap() error {
	return e.Err
}
