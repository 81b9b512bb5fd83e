package export

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-interview/pkg/engine"
	"github.com/teslashibe/go-interview/pkg/transcript"
)

// Title names the document for a session.
func Title(s engine.Session) string {
	title := "Interview"
	if s.Context.Role != "" {
		title = s.Context.Role + " interview"
	}
	if s.Context.CandidateName != "" {
		title += " with " + s.Context.CandidateName
	}
	return title + " (" + s.CreatedAt.Format("Jan 2, 2006") + ")"
}

// Format renders a transcript as plain document text.
func Format(s engine.Session, turns []transcript.Turn) string {
	var b strings.Builder

	b.WriteString(Title(s) + "\n\n")
	if s.Context.Level != "" {
		fmt.Fprintf(&b, "Level: %s\n", s.Context.Level)
	}
	if s.Context.Type != "" {
		fmt.Fprintf(&b, "Type: %s\n", s.Context.Type)
	}
	if len(s.Context.TechStack) > 0 {
		fmt.Fprintf(&b, "Tech stack: %s\n", strings.Join(s.Context.TechStack, ", "))
	}
	fmt.Fprintf(&b, "Session: %s\n\n", s.ID)

	for _, t := range turns {
		fmt.Fprintf(&b, "[%s] %s: %s\n", t.Timestamp.Format("15:04:05"), speakerLabel(t.Speaker), t.Text)
	}
	return b.String()
}

func speakerLabel(s transcript.Speaker) string {
	if s == transcript.SpeakerHuman {
		return "Candidate"
	}
	return "Interviewer"
}
