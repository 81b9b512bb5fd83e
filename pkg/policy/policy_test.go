package policy

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/teslashibe/go-interview/pkg/transcript"
)

func history(humans int) []transcript.Turn {
	var turns []transcript.Turn
	for i := 0; i < humans; i++ {
		turns = append(turns,
			transcript.NewTurn(transcript.SpeakerSystem, fmt.Sprintf("question %d", i)),
			transcript.NewTurn(transcript.SpeakerHuman, fmt.Sprintf("answer %d", i)),
		)
	}
	return turns
}

func TestStageFor(t *testing.T) {
	tests := []struct {
		humans int
		want   Stage
	}{
		{0, StageEarly},
		{2, StageEarly},
		{3, StageMid},
		{5, StageMid},
		{6, StageLate},
		{12, StageLate},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d turns", tt.humans), func(t *testing.T) {
			if got := StageFor(history(tt.humans)); got != tt.want {
				t.Errorf("StageFor() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestShouldEnd(t *testing.T) {
	if ShouldEnd(history(7)) {
		t.Error("7 answers should not end")
	}
	if !ShouldEnd(history(8)) {
		t.Error("8 answers should end")
	}
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"**Great** answer!", "Great answer!"},
		{"Tell me [briefly]\n\nabout   it", "Tell me briefly about   it"},
		{"  and/or  ", "andor"},
		{"*\n/\n[]", ""},
	}
	for _, tt := range tests {
		if got := CleanResponse(tt.in); got != tt.want {
			t.Errorf("CleanResponse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	ictx := Context{
		Role:             "Backend Engineer",
		Level:            "senior",
		Type:             "technical",
		TechStack:        []string{"Go", "Postgres"},
		GuidingQuestions: []string{"Describe a scaling problem.", "How do you test?"},
		CandidateName:    "Sam",
	}

	prompt := BuildPrompt(ictx, StageMid, "I wrote a scheduler.")
	for _, want := range []string{
		"Backend Engineer",
		"senior",
		"Go, Postgres",
		"1. Describe a scaling problem.",
		"2. How do you test?",
		"Sam",
		"Mid",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "gone quiet") {
		t.Error("speech input should not get silence instructions")
	}

	if !strings.Contains(BuildPrompt(ictx, StageEarly, SilenceMarker), "gone quiet") {
		t.Error("silence input should get silence instructions")
	}
	if !strings.Contains(BuildPrompt(Context{}, StageEarly, GreetingInput), "Greet the candidate") {
		t.Error("greeting input should ask for a greeting")
	}
}

func TestErrorKinds(t *testing.T) {
	unavailable := Unavailable(errors.New("connection refused"))
	if !errors.Is(unavailable, ErrPolicyUnavailable) {
		t.Error("unavailable should match ErrPolicyUnavailable")
	}
	if errors.Is(unavailable, ErrInvalidInput) {
		t.Error("unavailable should not match ErrInvalidInput")
	}

	invalid := InvalidInput("input is empty")
	if !errors.Is(invalid, ErrInvalidInput) || KindOf(invalid) != KindInvalidInput {
		t.Errorf("unexpected classification of %v", invalid)
	}
	if KindOf(errors.New("other")) != KindUnavailable {
		t.Error("foreign errors default to unavailable")
	}
	if Unavailable(nil) != nil {
		t.Error("Unavailable(nil) should be nil")
	}
}
