package hub

import (
	"github.com/teslashibe/go-interview/pkg/engine"
	"github.com/teslashibe/go-interview/pkg/protocol"
	"github.com/teslashibe/go-interview/pkg/transcript"
)

// EngineCallbacks publishes an engine's events for sessionID. Callbacks
// already set in next still run after publishing.
func (h *Hub) EngineCallbacks(sessionID string, next engine.Callbacks) engine.Callbacks {
	publish := func(msg *protocol.Message, err error) {
		if err != nil {
			h.logger.Warn("encode event", "error", err)
			return
		}
		h.Publish(sessionID, msg)
	}

	return engine.Callbacks{
		OnStateChange: func(from, to engine.State) {
			publish(protocol.NewStateMessage(sessionID, from.String(), to.String()))
			if next.OnStateChange != nil {
				next.OnStateChange(from, to)
			}
		},
		OnUtterance: func(turn transcript.Turn) {
			publish(protocol.NewUtteranceMessage(sessionID, string(turn.Speaker), turn.Text, turn.Timestamp.UnixMilli()))
			if next.OnUtterance != nil {
				next.OnUtterance(turn)
			}
		},
		OnFault: func(f engine.Fault) {
			publish(protocol.NewFaultMessage(sessionID, f.State.String(), f.Err.Error(), f.Attempt))
			if next.OnFault != nil {
				next.OnFault(f)
			}
		},
		OnFinished: func(s engine.Summary) {
			publish(protocol.NewFinishedMessage(protocol.FinishedData{
				SessionID:  s.SessionID,
				Reason:     s.Reason,
				Degraded:   s.Degraded,
				HumanTurns: s.HumanTurns,
				Turns:      s.Turns,
			}))
			if next.OnFinished != nil {
				next.OnFinished(s)
			}
		},
	}
}
