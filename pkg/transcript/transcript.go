// Package transcript stores the ordered turns of interview sessions.
//
// A transcript is an append-only log per session id. Committed turns are never
// reordered or edited; Clear is the only way to drop them and it cannot be
// undone. Implementations persist to a durable side channel so a session can be
// reloaded after a restart:
//
//	store, _ := transcript.NewJSONStore("data/transcripts.json")
//	_ = store.Append(ctx, sessionID, transcript.NewTurn(transcript.SpeakerSystem, "Hi!"))
//	turns, _ := store.All(ctx, sessionID)
package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	// SpeakerSystem is the automated interviewer.
	SpeakerSystem Speaker = "system"

	// SpeakerHuman is the candidate.
	SpeakerHuman Speaker = "human"
)

// Valid reports whether s is a known speaker.
func (s Speaker) Valid() bool {
	return s == SpeakerSystem || s == SpeakerHuman
}

// Turn is one utterance in a session.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a turn stamped with the current time.
func NewTurn(speaker Speaker, text string) Turn {
	return Turn{Speaker: speaker, Text: text, Timestamp: time.Now().UTC()}
}

// Validate checks the turn invariants enforced on append.
func (t Turn) Validate() error {
	if !t.Speaker.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSpeaker, t.Speaker)
	}
	if strings.TrimSpace(t.Text) == "" {
		return ErrEmptyTurn
	}
	return nil
}

// Sentinel errors.
var (
	// ErrEmptyTurn is returned when appending a turn with blank text.
	ErrEmptyTurn = errors.New("transcript: turn text is empty")

	// ErrInvalidSpeaker is returned for speakers other than system and human.
	ErrInvalidSpeaker = errors.New("transcript: invalid speaker")

	// ErrNoSessionID is returned when the session id is blank.
	ErrNoSessionID = errors.New("transcript: session id required")

	// ErrClosed is returned after the store has been closed.
	ErrClosed = errors.New("transcript: store closed")
)

// Store is the durable transcript log.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append commits a turn at the end of the session's transcript.
	Append(ctx context.Context, sessionID string, turn Turn) error

	// All returns the session's turns in append order.
	// An unknown session yields an empty slice.
	All(ctx context.Context, sessionID string) ([]Turn, error)

	// Clear irreversibly removes every turn of the session.
	Clear(ctx context.Context, sessionID string) error
}

// SessionInfo summarizes one stored session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lister is implemented by stores that can enumerate their sessions.
type Lister interface {
	Sessions(ctx context.Context) ([]SessionInfo, error)
}

func checkAppend(sessionID string, turn Turn) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrNoSessionID
	}
	return turn.Validate()
}
