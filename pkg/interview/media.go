package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-interview/pkg/capture"
	"github.com/teslashibe/go-interview/pkg/engine"
	"github.com/teslashibe/go-interview/pkg/remote"
	"github.com/teslashibe/go-interview/pkg/render"
	"github.com/teslashibe/go-interview/pkg/rtc"
	"github.com/teslashibe/go-interview/pkg/stt"
)

// ErrNoPeer is returned when answering an offer for a session without a
// WebRTC peer.
var ErrNoPeer = errors.New("interview: no webrtc peer for session")

// Channel is the speech I/O of one session.
type Channel struct {
	Capture capture.Port
	Render  render.Port

	closers []func() error
}

// OnClose registers fn to run when the channel is closed.
func (c *Channel) OnClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Close releases the channel's resources.
func (c *Channel) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Media opens the speech channel of a new session.
type Media interface {
	Open(session engine.Session) (*Channel, error)
}

// Answerer is implemented by media that ingest audio over WebRTC.
type Answerer interface {
	Answer(ctx context.Context, sessionID string, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
}

// Fixed always hands out the same ports. Local mode uses it for the
// machine's microphone and speakers.
type Fixed struct {
	Capture capture.Port
	Render  render.Port
}

// Open returns the fixed ports.
func (f Fixed) Open(engine.Session) (*Channel, error) {
	return &Channel{Capture: f.Capture, Render: f.Render}, nil
}

// RemoteMedia uses the candidate's browser for both recognition and
// synthesis.
type RemoteMedia struct {
	Dir      *remote.Directory
	Language string
	Capture  []capture.Option
}

// Open returns ports bound to the session's browser client.
func (m *RemoteMedia) Open(session engine.Session) (*Channel, error) {
	renderer := m.Dir.Renderer(session.ID)
	ch := &Channel{
		Capture: capture.NewListener(m.Dir.Recognizer(session.ID, m.Language), m.Capture...),
		Render:  renderer,
	}
	ch.OnClose(func() error {
		renderer.Stop()
		return nil
	})
	return ch, nil
}

// RTCMedia transcribes the candidate's WebRTC microphone on the server and
// speaks through the browser's synthesis.
type RTCMedia struct {
	dir     *remote.Directory
	peer    []rtc.Option
	stt     []stt.Option
	capture []capture.Option

	mu    sync.Mutex
	peers map[string]*rtc.Peer
}

// NewRTCMedia creates WebRTC-backed media.
func NewRTCMedia(dir *remote.Directory, peerOpts []rtc.Option, sttOpts []stt.Option, captureOpts []capture.Option) *RTCMedia {
	return &RTCMedia{
		dir:     dir,
		peer:    peerOpts,
		stt:     sttOpts,
		capture: captureOpts,
		peers:   make(map[string]*rtc.Peer),
	}
}

// Open creates the session's peer. Audio flows once Answer completes the
// negotiation; until then listens settle as silence.
func (m *RTCMedia) Open(session engine.Session) (*Channel, error) {
	peer, err := rtc.NewPeer(m.peer...)
	if err != nil {
		return nil, err
	}
	rec, err := stt.NewRealtime(peer.Source(), m.stt...)
	if err != nil {
		peer.Close()
		return nil, err
	}

	m.mu.Lock()
	m.peers[session.ID] = peer
	m.mu.Unlock()

	renderer := m.dir.Renderer(session.ID)
	ch := &Channel{
		Capture: capture.NewListener(rec, m.capture...),
		Render:  renderer,
	}
	ch.OnClose(func() error {
		renderer.Stop()
		m.mu.Lock()
		delete(m.peers, session.ID)
		m.mu.Unlock()
		return peer.Close()
	})
	return ch, nil
}

// Answer negotiates the session's peer connection.
func (m *RTCMedia) Answer(ctx context.Context, sessionID string, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	m.mu.Lock()
	peer := m.peers[sessionID]
	m.mu.Unlock()
	if peer == nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %s", ErrNoPeer, sessionID)
	}
	return peer.Answer(ctx, offer)
}

var (
	_ Media    = Fixed{}
	_ Media    = (*RemoteMedia)(nil)
	_ Media    = (*RTCMedia)(nil)
	_ Answerer = (*RTCMedia)(nil)
)
