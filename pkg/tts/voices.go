package tts

import (
	"sort"
	"strings"
)

// ElevenLabsPresets names stock ElevenLabs voices that suit an
// interviewer: clear, even-paced, neutral.
var ElevenLabsPresets = map[string]string{
	"rachel":    "21m00Tcm4TlvDq8ikWAM",
	"sarah":     "EXAVITQu4vr4xnSDxMaL",
	"charlotte": "XB0fDUnXU5powFXDhCwa",
	"aria":      "9BWtsMINqrJLrRacOk9x",
	"adam":      "pNInz6obpgDQGcFmaJgB",
	"josh":      "TxGEqnHWrfWFTfGW9XjX",
}

// DefaultElevenLabsVoice is the preset used when no voice is configured.
const DefaultElevenLabsVoice = "rachel"

// ResolveElevenLabsVoice maps a preset name (any case) to its voice ID.
// Anything else is taken to be a voice ID already.
func ResolveElevenLabsVoice(name string) string {
	if id, ok := ElevenLabsPresets[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return name
}

// ElevenLabsPresetNames lists the preset names in order.
func ElevenLabsPresetNames() []string {
	names := make([]string, 0, len(ElevenLabsPresets))
	for name := range ElevenLabsPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
