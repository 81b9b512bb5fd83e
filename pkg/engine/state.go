package engine

import (
	"time"

	"github.com/teslashibe/go-interview/pkg/policy"
)

// State is the phase of an interview session.
type State int

const (
	StateIdle State = iota
	StateGreeting
	StateAwaitingHuman
	StateSilencePending
	StateDispatching
	StateRendering
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGreeting:
		return "greeting"
	case StateAwaitingHuman:
		return "awaiting-human"
	case StateSilencePending:
		return "silence-pending"
	case StateDispatching:
		return "dispatching"
	case StateRendering:
		return "rendering"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session identifies one interview.
type Session struct {
	ID        string         `json:"id"`
	Context   policy.Context `json:"context"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Finish reasons reported in Summary.
const (
	ReasonCeiling   = "turn-ceiling"
	ReasonEnded     = "ended"
	ReasonExhausted = "retries-exhausted"
	ReasonCancelled = "cancelled"
)

// Summary is delivered once through OnFinished.
type Summary struct {
	SessionID  string `json:"sessionId"`
	Reason     string `json:"reason"`
	Degraded   bool   `json:"degraded"`
	HumanTurns int    `json:"humanTurns"`
	Turns      int    `json:"turns"`
}

// Fault reports a component failure handled by the engine.
type Fault struct {
	State   State
	Err     error
	Attempt int
}
