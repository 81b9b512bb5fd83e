package policy

import (
	"fmt"
	"regexp"
	"strings"
)

var stageLines = map[Stage]string{
	StageEarly: "Early (Introduction/Background). Focus on getting to know them.",
	StageMid:   "Mid (Technical/Behavioral). Dive deeper into their skills and experience.",
	StageLate:  "Late (Advanced/Wrap-up). Ask challenging questions and wrap up.",
}

// BuildPrompt returns the system instructions for one policy call.
func BuildPrompt(ictx Context, stage Stage, input string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an experienced interviewer conducting a %s interview for a %s position at the %s level.\n",
		orDefault(ictx.Type, "mixed"), orDefault(ictx.Role, "software engineering"), orDefault(ictx.Level, "unspecified"))
	if len(ictx.TechStack) > 0 {
		fmt.Fprintf(&b, "The tech stack includes: %s.\n", strings.Join(ictx.TechStack, ", "))
	}

	b.WriteString(`
Interview rules:
1. Always respond as the interviewer, never as the candidate.
2. Ask one question at a time.
3. Keep every reply conversational and short enough to speak aloud (25 to 35 words).
4. Build on what the candidate just said and reference it specifically.
5. If they mention a technology, project or experience, dig deeper into challenges and outcomes.
6. Acknowledge good points before moving on and keep transitions smooth.
7. Do not use markdown, lists or special characters such as *, / or brackets.
`)
	if ictx.CandidateName != "" {
		fmt.Fprintf(&b, "8. The candidate's name is %s. Use it occasionally.\n", ictx.CandidateName)
	}

	fmt.Fprintf(&b, "\nCurrent interview stage: %s\n", stageLines[stage])

	if len(ictx.GuidingQuestions) > 0 {
		b.WriteString("\nQuestions to guide the conversation (adapt them to the candidate's answers):\n")
		for i, q := range ictx.GuidingQuestions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
	}

	switch input {
	case SilenceMarker:
		b.WriteString(`
The candidate has gone quiet. Gently encourage them (for example "take your time"),
rephrase the current question or ask a simpler follow-up, and stay patient.
`)
	case GreetingInput:
		b.WriteString(`
The interview is starting now. Greet the candidate warmly, introduce the interview in
one sentence and ask your first question.
`)
	}

	return strings.TrimSpace(b.String())
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

var (
	stripChars = strings.NewReplacer("*", "", "/", "", "[", "", "]", "")
	newlines   = regexp.MustCompile(`\s*\n+\s*`)
)

// CleanResponse strips formatting a speech synthesizer would read aloud and
// flattens the reply onto one line.
func CleanResponse(s string) string {
	s = stripChars.Replace(s)
	s = newlines.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
