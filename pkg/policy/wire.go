package policy

import "github.com/teslashibe/go-interview/pkg/transcript"

// Request is the body of POST /api/policy/next.
type Request struct {
	Context Context           `json:"context"`
	History []transcript.Turn `json:"history"`
	Input   string            `json:"input"`
}

// Response is a successful reply. Stage and ShouldEnd are advisory.
type Response struct {
	Utterance string `json:"utterance"`
	Stage     Stage  `json:"stage,omitempty"`
	ShouldEnd bool   `json:"shouldEnd,omitempty"`
}

// WireError is the error envelope.
type WireError struct {
	Error struct {
		Kind    Kind   `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func newWireError(kind Kind, msg string) WireError {
	var w WireError
	w.Error.Kind = kind
	w.Error.Message = msg
	return w
}
