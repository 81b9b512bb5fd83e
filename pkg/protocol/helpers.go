package protocol

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewListenMessage asks a client to recognize one utterance.
func NewListenMessage(id, lang string) (*Message, error) {
	return NewMessage(TypeListen, ListenData{ID: id, Language: lang})
}

// NewStopMessage aborts request id, or all requests when id is empty.
func NewStopMessage(id string) (*Message, error) {
	return NewMessage(TypeStop, StopData{ID: id})
}

// NewSpeakMessage asks a client to speak text.
func NewSpeakMessage(id, text string, rate, pitch, volume float64) (*Message, error) {
	return NewMessage(TypeSpeak, SpeakData{
		ID:     id,
		Text:   text,
		Rate:   rate,
		Pitch:  pitch,
		Volume: volume,
	})
}

// NewFragmentMessage reports a recognition event.
func NewFragmentMessage(id, text string, final bool) (*Message, error) {
	return NewMessage(TypeFragment, FragmentData{ID: id, Text: text, Final: final})
}

// NewDoneMessage acknowledges request id with typ, which is one of
// TypeListenEnd, TypeListenFail, TypeSpoken or TypeSpeakFail.
func NewDoneMessage(typ MessageType, id, errMsg string) (*Message, error) {
	return NewMessage(typ, DoneData{ID: id, Error: errMsg})
}

// NewStateMessage reports an engine state change.
func NewStateMessage(sessionID, from, to string) (*Message, error) {
	return NewMessage(TypeState, StateData{SessionID: sessionID, From: from, To: to})
}

// NewUtteranceMessage reports a committed turn.
func NewUtteranceMessage(sessionID, speaker, text string, at int64) (*Message, error) {
	return NewMessage(TypeUtterance, UtteranceData{
		SessionID: sessionID,
		Speaker:   speaker,
		Text:      text,
		At:        at,
	})
}

// NewFaultMessage reports a recoverable fault.
func NewFaultMessage(sessionID, state, message string, attempt int) (*Message, error) {
	return NewMessage(TypeFault, FaultData{
		SessionID: sessionID,
		State:     state,
		Message:   message,
		Attempt:   attempt,
	})
}

// NewFinishedMessage reports a finished session.
func NewFinishedMessage(data FinishedData) (*Message, error) {
	return NewMessage(TypeFinished, data)
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetHelloData extracts hello data from a message
func (m *Message) GetHelloData() (*HelloData, error) {
	var data HelloData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFragmentData extracts fragment data from a message
func (m *Message) GetFragmentData() (*FragmentData, error) {
	var data FragmentData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetDoneData extracts an acknowledgement from a message
func (m *Message) GetDoneData() (*DoneData, error) {
	var data DoneData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSpeakData extracts speak data from a message
func (m *Message) GetSpeakData() (*SpeakData, error) {
	var data SpeakData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// IsAck reports whether the message acknowledges a listen or speak request.
func (m *Message) IsAck() bool {
	switch m.Type {
	case TypeListenEnd, TypeListenFail, TypeSpoken, TypeSpeakFail:
		return true
	}
	return false
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
