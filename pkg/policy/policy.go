// Package policy decides what the interviewer says next.
//
// A Client is stateless: every call receives the interview context, the full
// transcript so far and the newest input, and returns one utterance. All
// conversational memory lives in the transcript.
//
// Two reserved inputs never come from speech-to-text: SilenceMarker tells the
// policy the candidate said nothing, GreetingInput asks for the opening line.
package policy

import (
	"context"

	"github.com/teslashibe/go-interview/pkg/transcript"
)

const (
	// SilenceMarker is sent instead of human text when a listen timed out.
	SilenceMarker = "[SILENCE_DETECTED]"

	// GreetingInput requests the opening utterance of a session.
	GreetingInput = "[INTERVIEW_START]"

	// SuggestedTurnLimit is the human turn count at which the policy
	// suggests wrapping up.
	SuggestedTurnLimit = 8
)

// Context describes the interview being conducted.
type Context struct {
	Role             string   `json:"role" yaml:"role"`
	Level            string   `json:"level" yaml:"level"`
	Type             string   `json:"type" yaml:"type"`
	TechStack        []string `json:"techStack" yaml:"tech_stack"`
	GuidingQuestions []string `json:"guidingQuestions" yaml:"questions"`
	CandidateName    string   `json:"candidateName,omitempty" yaml:"candidate_name"`
}

// Client produces the next system utterance.
type Client interface {
	NextUtterance(ctx context.Context, ictx Context, history []transcript.Turn, input string) (string, error)
}

// Stage is the coarse phase of an interview.
type Stage string

const (
	StageEarly Stage = "early"
	StageMid   Stage = "mid"
	StageLate  Stage = "late"
)

// HumanTurns counts the candidate's turns in history.
func HumanTurns(history []transcript.Turn) int {
	n := 0
	for _, t := range history {
		if t.Speaker == transcript.SpeakerHuman {
			n++
		}
	}
	return n
}

// StageFor returns the stage implied by the number of human answers:
// early below 3, mid below 6, late afterwards.
func StageFor(history []transcript.Turn) Stage {
	switch n := HumanTurns(history); {
	case n < 3:
		return StageEarly
	case n < 6:
		return StageMid
	default:
		return StageLate
	}
}

// ShouldEnd reports whether the interview has run long enough to wrap up.
func ShouldEnd(history []transcript.Turn) bool {
	return HumanTurns(history) >= SuggestedTurnLimit
}

// IsReserved reports whether input is one of the reserved markers.
func IsReserved(input string) bool {
	return input == SilenceMarker || input == GreetingInput
}
