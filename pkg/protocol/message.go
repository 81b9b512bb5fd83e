// Package protocol defines the WebSocket envelopes exchanged with browser
// clients: speech capture and playback requests for remote interviews, and
// engine events for dashboards.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → speech client
	TypeListen MessageType = "listen" // Start recognition for one attempt
	TypeStop   MessageType = "stop"   // Abort recognition or playback
	TypeSpeak  MessageType = "speak"  // Speak a line with local synthesis

	// Speech client → server
	TypeHello      MessageType = "hello"        // Client identifies its session
	TypeFragment   MessageType = "fragment"     // Recognition result
	TypeListenEnd  MessageType = "listen_end"   // Recognition stream ended
	TypeListenFail MessageType = "listen_error" // Recognition failed
	TypeSpoken     MessageType = "spoken"       // Playback finished
	TypeSpeakFail  MessageType = "speak_error"  // Playback failed

	// Server → dashboard
	TypeState     MessageType = "state"     // Engine state change
	TypeUtterance MessageType = "utterance" // Committed transcript turn
	TypeFault     MessageType = "fault"     // Recoverable fault
	TypeFinished  MessageType = "finished"  // Session summary

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Speech client messages
// =============================================================================

// HelloData binds a connection to a session.
type HelloData struct {
	SessionID string `json:"session_id"`
	// Capabilities the browser offers: "recognize", "synthesize".
	Capabilities []string `json:"capabilities,omitempty"`
}

// ListenData asks the client to start recognition for one attempt.
type ListenData struct {
	ID       string `json:"id"`
	Language string `json:"lang,omitempty"`
}

// StopData aborts the request with ID, or everything when ID is empty.
type StopData struct {
	ID string `json:"id,omitempty"`
}

// FragmentData is one recognition event.
type FragmentData struct {
	ID       string `json:"id"`
	Text     string `json:"text,omitempty"`
	Final    bool   `json:"final,omitempty"`
	Activity bool   `json:"activity,omitempty"`
}

// SpeakData asks the client to speak a line.
type SpeakData struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

// DoneData acknowledges the request with ID. Error is set on failure.
type DoneData struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// =============================================================================
// Dashboard messages
// =============================================================================

// StateData reports an engine state change.
type StateData struct {
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// UtteranceData reports a committed turn.
type UtteranceData struct {
	SessionID string `json:"session_id"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	At        int64  `json:"at"` // Unix milliseconds
}

// FaultData reports a recoverable fault.
type FaultData struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Message   string `json:"message"`
	Attempt   int    `json:"attempt"`
}

// FinishedData summarizes a finished session.
type FinishedData struct {
	SessionID  string `json:"session_id"`
	Reason     string `json:"reason"`
	Degraded   bool   `json:"degraded"`
	HumanTurns int    `json:"human_turns"`
	Turns      int    `json:"turns"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
