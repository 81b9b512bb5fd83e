package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-interview/pkg/engine"
	"github.com/teslashibe/go-interview/pkg/hub"
	"github.com/teslashibe/go-interview/pkg/policy"
	"github.com/teslashibe/go-interview/pkg/transcript"
)

// Sentinel errors.
var (
	// ErrNoContext is returned when a session names neither a profile nor
	// an interview context.
	ErrNoContext = errors.New("interview: profile or context required")

	// ErrSessionActive is returned when clearing a running session.
	ErrSessionActive = errors.New("interview: session still running")

	// ErrRTCUnsupported is returned by Answer when the media has no WebRTC.
	ErrRTCUnsupported = errors.New("interview: media does not accept webrtc")
)

// CreateRequest describes a new session.
type CreateRequest struct {
	ID            string          `json:"id,omitempty"`
	Profile       string          `json:"profile,omitempty"`
	Context       *policy.Context `json:"context,omitempty"`
	CandidateName string          `json:"candidateName,omitempty"`
}

// SessionView is the externally visible state of a session.
type SessionView struct {
	engine.Session
	State      string          `json:"state"`
	Degraded   bool            `json:"degraded"`
	HumanTurns int             `json:"humanTurns"`
	Summary    *engine.Summary `json:"summary,omitempty"`
}

// Service creates and tracks interview sessions.
type Service struct {
	store     transcript.Store
	policy    policy.Client
	media     Media
	hub       *hub.Hub
	finalizer engine.Finalizer
	profiles  *Profiles
	callbacks engine.Callbacks
	defaults  []engine.Option
	logger    *slog.Logger

	registry *engine.Registry

	mu       sync.Mutex
	channels map[string]*Channel
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithHub publishes engine events on h.
func WithHub(h *hub.Hub) ServiceOption {
	return func(s *Service) { s.hub = h }
}

// WithFinalizer sets the hook run on every finished session.
func WithFinalizer(f engine.Finalizer) ServiceOption {
	return func(s *Service) { s.finalizer = f }
}

// WithProfiles sets the profiles sessions may name.
func WithProfiles(p *Profiles) ServiceOption {
	return func(s *Service) { s.profiles = p }
}

// WithCallbacks observes every session's events.
func WithCallbacks(cb engine.Callbacks) ServiceOption {
	return func(s *Service) { s.callbacks = cb }
}

// WithEngineOptions sets engine options applied before profile overrides.
func WithEngineOptions(opts ...engine.Option) ServiceOption {
	return func(s *Service) { s.defaults = append(s.defaults, opts...) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a session service.
func NewService(store transcript.Store, client policy.Client, media Media, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		policy:   client,
		media:    media,
		logger:   slog.Default(),
		registry: engine.NewRegistry(),
		channels: make(map[string]*Channel),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "interview")
	return s
}

// Profiles returns the loaded profiles.
func (s *Service) Profiles() *Profiles {
	return s.profiles
}

// Create builds and starts a session. The session keeps running after ctx
// ends; stop it with End or Shutdown.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*engine.Engine, error) {
	ictx, opts, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	session := engine.Session{ID: id, Context: ictx, CreatedAt: time.Now().UTC()}

	if _, err := s.registry.Get(id); err == nil {
		return nil, fmt.Errorf("%w: %s", engine.ErrDuplicateSession, id)
	}

	ch, err := s.media.Open(session)
	if err != nil {
		return nil, fmt.Errorf("interview: open media: %w", err)
	}

	callbacks := s.callbacks
	callbacks.OnFinished = func(sum engine.Summary) {
		s.release(sum.SessionID)
		if s.callbacks.OnFinished != nil {
			s.callbacks.OnFinished(sum)
		}
	}
	if s.hub != nil {
		callbacks = s.hub.EngineCallbacks(id, callbacks)
	}
	opts = append(opts, engine.WithCallbacks(callbacks), engine.WithLogger(s.logger))
	if s.finalizer != nil {
		opts = append(opts, engine.WithFinalizer(s.finalizer))
	}

	e := engine.New(session, engine.Ports{
		Capture: ch.Capture,
		Render:  ch.Render,
		Policy:  s.policy,
		Store:   s.store,
	}, opts...)

	if err := s.registry.Add(e); err != nil {
		ch.Close()
		return nil, err
	}
	s.mu.Lock()
	s.channels[id] = ch
	s.mu.Unlock()

	if err := e.Start(context.WithoutCancel(ctx)); err != nil {
		s.registry.Remove(id)
		s.release(id)
		return nil, err
	}

	s.logger.Info("session started", "session", id, "role", ictx.Role, "profile", req.Profile)
	return e, nil
}

func (s *Service) resolve(req CreateRequest) (policy.Context, []engine.Option, error) {
	opts := append([]engine.Option(nil), s.defaults...)

	var ictx policy.Context
	switch {
	case req.Profile != "":
		p, err := s.profiles.Get(req.Profile)
		if err != nil {
			return ictx, nil, err
		}
		ictx = p.Context
		ictx.TechStack = append([]string(nil), p.Context.TechStack...)
		ictx.GuidingQuestions = append([]string(nil), p.Context.GuidingQuestions...)
		opts = append(opts, p.EngineOptions()...)
	case req.Context != nil:
		ictx = *req.Context
	default:
		return ictx, nil, ErrNoContext
	}

	if req.CandidateName != "" {
		ictx.CandidateName = req.CandidateName
	}
	if strings.TrimSpace(ictx.Role) == "" {
		return ictx, nil, fmt.Errorf("%w: role is required", ErrNoContext)
	}
	return ictx, opts, nil
}

// release closes a session's media once.
func (s *Service) release(id string) {
	s.mu.Lock()
	ch := s.channels[id]
	delete(s.channels, id)
	s.mu.Unlock()

	if ch == nil {
		return
	}
	if err := ch.Close(); err != nil {
		s.logger.Warn("close media", "session", id, "error", err)
	}
}

// Get returns a session's engine.
func (s *Service) Get(id string) (*engine.Engine, error) {
	return s.registry.Get(id)
}

// View describes a session.
func (s *Service) View(id string) (SessionView, error) {
	e, err := s.registry.Get(id)
	if err != nil {
		return SessionView{}, err
	}
	return view(e), nil
}

func view(e *engine.Engine) SessionView {
	v := SessionView{
		Session:    e.Session(),
		State:      e.State().String(),
		Degraded:   e.Degraded(),
		HumanTurns: e.HumanTurns(),
	}
	if e.State() == engine.StateFinished {
		sum := e.Summary()
		v.Summary = &sum
	}
	return v
}

// List describes all sessions, oldest first.
func (s *Service) List() []SessionView {
	engines := s.registry.List()
	out := make([]SessionView, len(engines))
	for i, e := range engines {
		out[i] = view(e)
	}
	return out
}

// End finishes a session. Ending a finished session is a no-op.
func (s *Service) End(id string) error {
	e, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return e.End()
}

// Transcript returns the durable transcript of a session.
func (s *Service) Transcript(ctx context.Context, id string) ([]transcript.Turn, error) {
	return s.store.All(ctx, id)
}

// Clear removes a finished session's transcript and forgets the session.
func (s *Service) Clear(ctx context.Context, id string) error {
	if s.InUse(id) {
		return ErrSessionActive
	}
	if err := s.store.Clear(ctx, id); err != nil {
		return err
	}
	s.registry.Remove(id)
	return nil
}

// InUse reports whether a session is still running.
func (s *Service) InUse(id string) bool {
	e, err := s.registry.Get(id)
	return err == nil && e.State() != engine.StateFinished
}

// Answer negotiates server-side WebRTC capture for a session.
func (s *Service) Answer(ctx context.Context, id string, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if _, err := s.registry.Get(id); err != nil {
		return webrtc.SessionDescription{}, err
	}
	a, ok := s.media.(Answerer)
	if !ok {
		return webrtc.SessionDescription{}, ErrRTCUnsupported
	}
	return a.Answer(ctx, id, offer)
}

// Shutdown ends every session and waits for them to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.registry.EndAll()
	for _, e := range s.registry.List() {
		if werr := e.Wait(ctx); werr != nil {
			return errors.Join(err, werr)
		}
	}
	return err
}
