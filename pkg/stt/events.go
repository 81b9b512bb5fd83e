package stt

import "fmt"

// Client and server event types used by transcription sessions.
const (
	eventSessionUpdate = "transcription_session.update"
	eventAudioAppend   = "input_audio_buffer.append"

	eventSpeechStarted = "input_audio_buffer.speech_started"
	eventSpeechStopped = "input_audio_buffer.speech_stopped"
	eventDelta         = "conversation.item.input_audio_transcription.delta"
	eventCompleted     = "conversation.item.input_audio_transcription.completed"
	eventFailed        = "conversation.item.input_audio_transcription.failed"
	eventError         = "error"
)

type sessionUpdate struct {
	Type    string             `json:"type"`
	Session transcriptionSetup `json:"session"`
}

type transcriptionSetup struct {
	InputAudioFormat        string              `json:"input_audio_format"`
	InputAudioTranscription transcriptionModel  `json:"input_audio_transcription"`
	TurnDetection           turnDetection       `json:"turn_detection"`
	Include                 []string            `json:"include,omitempty"`
	NoiseReduction          *noiseReductionType `json:"input_audio_noise_reduction,omitempty"`
}

type transcriptionModel struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int64   `json:"prefix_padding_ms"`
	SilenceDurationMs int64   `json:"silence_duration_ms"`
}

type noiseReductionType struct {
	Type string `json:"type"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type serverEvent struct {
	Type       string      `json:"type"`
	ItemID     string      `json:"item_id"`
	Delta      string      `json:"delta"`
	Transcript string      `json:"transcript"`
	Error      *EventError `json:"error"`
}

// EventError is an error event reported by the realtime API.
type EventError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *EventError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stt: %s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("stt: %s: %s", e.Type, e.Message)
}
