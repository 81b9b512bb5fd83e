// Package hub fans engine events out to dashboard websocket clients
// using the channel-based broadcast pattern.
package hub

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded message
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data
	BinaryMessage
)

// Message represents a message to be broadcast to clients
type Message struct {
	Type MessageType
	Data []byte

	// SessionID scopes the message. Clients subscribed to a different
	// session skip it; clients subscribed to "" receive everything.
	SessionID string
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage creates a binary message
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// wants reports whether a client subscribed to session receives m.
func (m Message) wants(session string) bool {
	return session == "" || m.SessionID == "" || m.SessionID == session
}
