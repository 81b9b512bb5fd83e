// Package engine runs a spoken interview as a turn-taking state machine.
//
// One Engine owns one session. It greets the candidate, listens for an
// answer or a silence, asks the dialogue policy for the next line, commits
// both sides to the transcript in order and speaks the reply, until the
// human-turn ceiling is reached or End is called.
//
//	eng := engine.New(session, engine.Ports{
//		Capture: listener,
//		Render:  speaker,
//		Policy:  llm,
//		Store:   store,
//	}, engine.WithCallbacks(cb))
//	_ = eng.Start(ctx)
//	<-eng.Done()
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-interview/pkg/capture"
	"github.com/teslashibe/go-interview/pkg/policy"
	"github.com/teslashibe/go-interview/pkg/render"
	"github.com/teslashibe/go-interview/pkg/transcript"
)

// Ports are the collaborators an Engine drives.
type Ports struct {
	Capture capture.Port
	Render  render.Port
	Policy  policy.Client
	Store   transcript.Store
}

// Engine coordinates one interview session.
type Engine struct {
	session Session
	ports   Ports
	config  *Config
	logger  *slog.Logger
	events  *dispatcher
	done    chan struct{}

	mu         sync.Mutex
	state      State
	gen        uint64
	cancel     context.CancelFunc
	finishing  bool
	degraded   bool
	reason     string
	humanTurns int
	retries    map[State]int

	// tmu serializes commits with finalization.
	tmu   sync.Mutex
	turns []transcript.Turn
}

// New creates an idle engine for session.
func New(session Session, ports Ports, opts ...Option) *Engine {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	return &Engine{
		session: session,
		ports:   ports,
		config:  cfg,
		logger:  cfg.Logger.With("component", "engine", "session", session.ID),
		done:    make(chan struct{}),
		state:   StateIdle,
		retries: make(map[State]int),
	}
}

// Start greets the candidate and begins the interview loop in the background.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.gen++
	gen := e.gen
	e.events = newDispatcher()
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.setStateLocked(StateGreeting)
	e.mu.Unlock()

	e.logger.Info("interview started", "role", e.session.Context.Role, "max_human_turns", e.config.MaxHumanTurns)
	go e.run(runCtx, gen)
	return nil
}

// End stops the interview, cancels any capture or playback in flight and
// finalizes the transcript. Only the first call does any work; it returns
// the finalization error, if any. Later calls return nil.
func (e *Engine) End() error {
	e.mu.Lock()
	idle := e.state == StateIdle
	e.mu.Unlock()
	if idle {
		return ErrNotStarted
	}
	return e.finish(ReasonEnded, false)
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Degraded reports whether the session ended because retries ran out.
func (e *Engine) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

// HumanTurns returns the number of answers committed so far.
func (e *Engine) HumanTurns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.humanTurns
}

// Session returns the session this engine runs.
func (e *Engine) Session() Session {
	return e.session
}

// Transcript returns the committed turns in order.
func (e *Engine) Transcript() []transcript.Turn {
	e.tmu.Lock()
	defer e.tmu.Unlock()
	out := make([]transcript.Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

// Summary describes the session as it stands.
func (e *Engine) Summary() Summary {
	e.tmu.Lock()
	turns := len(e.turns)
	e.tmu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return Summary{
		SessionID:  e.session.ID,
		Reason:     e.reason,
		Degraded:   e.degraded,
		HumanTurns: e.humanTurns,
		Turns:      turns,
	}
}

// Done is closed once the session has finished and every callback has been
// delivered.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until Done or ctx expires.
func (e *Engine) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context, gen uint64) {
	reason := e.loop(ctx, gen)
	if reason == "" {
		return
	}
	e.finish(reason, reason == ReasonExhausted)
}

// loop drives the state machine. It returns the finish reason, or "" when
// the run was superseded by End.
func (e *Engine) loop(ctx context.Context, gen uint64) string {
	if reason, ok := e.greet(ctx, gen); !ok {
		return reason
	}

	for {
		if !e.transition(gen, StateAwaitingHuman) {
			return ""
		}

		history := e.Transcript()
		res, err := e.ports.Capture.Listen(ctx, e.config.SilenceThreshold)
		if !e.current(gen) {
			return ""
		}
		if err != nil {
			if !e.recover(ctx, gen, StateAwaitingHuman, err) {
				return e.stopReason(ctx, gen)
			}
			continue
		}
		e.succeeded(StateAwaitingHuman)

		text := strings.TrimSpace(res.Text)
		input := text
		if res.Kind != capture.KindSpeech || text == "" {
			if !e.transition(gen, StateSilencePending) {
				return ""
			}
			input = policy.SilenceMarker
			text = ""
		}
		if !e.transition(gen, StateDispatching) {
			return ""
		}

		if text != "" {
			if err := e.commit(ctx, gen, transcript.NewTurn(transcript.SpeakerHuman, text)); err != nil {
				if errors.Is(err, errStale) {
					return ""
				}
				if !e.recover(ctx, gen, StateDispatching, err) {
					return e.stopReason(ctx, gen)
				}
				continue
			}
		}

		reply, err := e.ports.Policy.NextUtterance(ctx, e.session.Context, history, input)
		if !e.current(gen) {
			return ""
		}
		if err == nil {
			err = e.commit(ctx, gen, transcript.NewTurn(transcript.SpeakerSystem, reply))
			if errors.Is(err, errStale) {
				return ""
			}
		}
		// A failed dispatch drops the pending input and listens again. The
		// committed human turn stays, so the transcript can hold consecutive
		// human turns with no reply between them.
		if err != nil {
			if !e.recover(ctx, gen, StateDispatching, err) {
				return e.stopReason(ctx, gen)
			}
			continue
		}
		e.succeeded(StateDispatching)

		if !e.transition(gen, StateRendering) {
			return ""
		}
		err = e.ports.Render.Speak(ctx, reply, e.config.Prosody)
		if !e.current(gen) {
			return ""
		}
		if err != nil {
			if !e.recover(ctx, gen, StateRendering, err) {
				return e.stopReason(ctx, gen)
			}
		} else {
			e.succeeded(StateRendering)
		}

		if e.HumanTurns() >= e.config.MaxHumanTurns {
			return ReasonCeiling
		}
	}
}

// greet obtains, commits and speaks the opening line. A failure to obtain
// the line is retried; a failed playback moves on since the line is already
// in the transcript.
func (e *Engine) greet(ctx context.Context, gen uint64) (string, bool) {
	var line string
	for {
		var err error
		line, err = e.openingLine(ctx)
		if !e.current(gen) {
			return "", false
		}
		if err == nil {
			err = e.commit(ctx, gen, transcript.NewTurn(transcript.SpeakerSystem, line))
			if errors.Is(err, errStale) {
				return "", false
			}
		}
		if err == nil {
			break
		}
		if !e.recover(ctx, gen, StateGreeting, err) {
			return e.stopReason(ctx, gen), false
		}
	}

	err := e.ports.Render.Speak(ctx, line, e.config.Prosody)
	if !e.current(gen) {
		return "", false
	}
	if err != nil {
		if !e.recover(ctx, gen, StateGreeting, err) {
			return e.stopReason(ctx, gen), false
		}
		return "", true
	}
	e.succeeded(StateGreeting)
	return "", true
}

func (e *Engine) openingLine(ctx context.Context) (string, error) {
	if e.config.Greeting == "" {
		return e.ports.Policy.NextUtterance(ctx, e.session.Context, nil, policy.GreetingInput)
	}
	name := e.session.Context.CandidateName
	if name == "" {
		name = "there"
	}
	role := e.session.Context.Role
	if role == "" {
		role = "this"
	}
	r := strings.NewReplacer("{{name}}", name, "{{role}}", role)
	return r.Replace(e.config.Greeting), nil
}

var errStale = errors.New("engine: stale generation")

// commit appends a turn unless the run has been superseded. A commit that
// has started always completes before finalization reads the transcript.
func (e *Engine) commit(ctx context.Context, gen uint64, turn transcript.Turn) error {
	e.tmu.Lock()
	defer e.tmu.Unlock()

	if !e.current(gen) {
		return errStale
	}
	if err := e.ports.Store.Append(context.WithoutCancel(ctx), e.session.ID, turn); err != nil {
		return err
	}
	e.turns = append(e.turns, turn)

	e.mu.Lock()
	if turn.Speaker == transcript.SpeakerHuman {
		e.humanTurns++
	}
	if cb := e.config.Callbacks.OnUtterance; cb != nil {
		e.events.post(func() { cb(turn) })
	}
	e.mu.Unlock()

	e.logger.Debug("turn committed", "speaker", turn.Speaker, "chars", len(turn.Text))
	return nil
}

// recover reports a fault and waits out the backoff. It returns false when
// the run must stop, either because retries for state are exhausted or
// because the run was cancelled.
func (e *Engine) recover(ctx context.Context, gen uint64, state State, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	e.mu.Lock()
	if gen != e.gen || e.finishing {
		e.mu.Unlock()
		return false
	}
	e.retries[state]++
	attempt := e.retries[state]
	exhausted := attempt > e.config.MaxRetries
	if cb := e.config.Callbacks.OnFault; cb != nil {
		f := Fault{State: state, Err: err, Attempt: attempt}
		e.events.post(func() { cb(f) })
	}
	e.mu.Unlock()

	if exhausted {
		e.logger.Error("retries exhausted", "state", state, "attempts", attempt, "error", err)
		return false
	}
	e.logger.Warn("recoverable fault", "state", state, "attempt", attempt, "error", err)

	timer := time.NewTimer(e.config.Backoff * time.Duration(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
		return e.current(gen)
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) stopReason(ctx context.Context, gen uint64) string {
	if !e.current(gen) {
		return ""
	}
	if ctx.Err() != nil {
		return ReasonCancelled
	}
	return ReasonExhausted
}

func (e *Engine) succeeded(state State) {
	e.mu.Lock()
	e.retries[state] = 0
	e.mu.Unlock()
}

func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.gen && !e.finishing
}

func (e *Engine) transition(gen uint64, to State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.finishing {
		return false
	}
	e.setStateLocked(to)
	return true
}

// setStateLocked must be called with mu held.
func (e *Engine) setStateLocked(to State) {
	from := e.state
	if from == to {
		return
	}
	e.state = to
	e.logger.Debug("state change", "from", from, "to", to)
	if cb := e.config.Callbacks.OnStateChange; cb != nil {
		e.events.post(func() { cb(from, to) })
	}
}

// finish moves to Finished and finalizes exactly once.
func (e *Engine) finish(reason string, degraded bool) error {
	e.mu.Lock()
	if e.finishing {
		e.mu.Unlock()
		return nil
	}
	e.finishing = true
	e.gen++
	e.reason = reason
	e.degraded = e.degraded || degraded
	cancel := e.cancel
	e.setStateLocked(StateFinished)
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if e.ports.Capture != nil {
		e.ports.Capture.Stop()
	}
	if e.ports.Render != nil {
		e.ports.Render.Stop()
	}

	turns := e.Transcript()
	err := e.finalize(turns)

	summary := e.Summary()
	e.logger.Info("interview finished",
		"reason", summary.Reason,
		"degraded", summary.Degraded,
		"human_turns", summary.HumanTurns,
		"turns", summary.Turns,
	)

	e.mu.Lock()
	if err != nil {
		if cb := e.config.Callbacks.OnFault; cb != nil {
			f := Fault{State: StateFinished, Err: err, Attempt: 1}
			e.events.post(func() { cb(f) })
		}
	}
	if cb := e.config.Callbacks.OnFinished; cb != nil {
		e.events.post(func() { cb(summary) })
	}
	e.events.post(func() { close(e.done) })
	e.mu.Unlock()
	e.events.close()

	return err
}

func (e *Engine) finalize(turns []transcript.Turn) error {
	if e.config.Finalizer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.config.FinalizeTimeout)
	defer cancel()

	if err := e.config.Finalizer.Finalize(ctx, e.session, turns); err != nil {
		e.logger.Error("finalization failed", "error", err)
		return &FinalizationError{SessionID: e.session.ID, Err: err}
	}
	return nil
}
