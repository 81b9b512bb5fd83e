// Package rtc receives a candidate's microphone over WebRTC.
//
// The browser creates an offer with one Opus audio track; Peer answers it,
// decodes incoming RTP with libopus and exposes the audio as an
// audioio.Source, which feeds server-side speech recognition.
package rtc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// Peer is one browser connection delivering audio.
type Peer struct {
	cfg    *Config
	pc     *webrtc.PeerConnection
	source *Source
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	tracks int
}

// NewPeer creates a receive-only peer connection with an Opus decoder.
func NewPeer(opts ...Option) (*Peer, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	dec, err := NewOpusDecoder(cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("rtc: opus decoder: %w", err)
	}
	return newPeer(cfg, dec)
}

func newPeer(cfg *Config, dec Decoder) (*Peer, error) {
	var servers []webrtc.ICEServer
	if len(cfg.ICEServers) > 0 {
		servers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("rtc: peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("rtc: audio transceiver: %w", err)
	}

	logger := cfg.Logger.With("component", "rtc")
	p := &Peer{
		cfg:    cfg,
		pc:     pc,
		source: NewSource(dec, cfg.Channels, cfg.StreamBuffer, cfg.Logger),
		logger: logger,
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		p.mu.Lock()
		p.tracks++
		p.mu.Unlock()
		logger.Info("audio track received", "codec", track.Codec().MimeType, "ssrc", track.SSRC())

		go func() {
			err := p.source.consume(func() (*rtp.Packet, error) {
				pkt, _, err := track.ReadRTP()
				return pkt, err
			})
			logger.Debug("audio track ended", "error", err, "lost", p.source.Lost())
		}()
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Info("connection state", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed {
			p.Close()
		}
	})

	return p, nil
}

// Answer applies the remote offer and returns the local answer once ICE
// gathering completes, so no trickle signalling is needed.
func (p *Peer) Answer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		return webrtc.SessionDescription{}, ErrBadOffer
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return webrtc.SessionDescription{}, ErrClosed
	}

	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", ErrBadOffer, err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("rtc: create answer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("rtc: set local description: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.GatherTimeout)
	defer cancel()
	select {
	case <-gathered:
	case <-ctx.Done():
		p.logger.Warn("ICE gathering incomplete, answering with partial candidates")
	}

	return *p.pc.LocalDescription(), nil
}

// Source returns the decoded microphone audio.
func (p *Peer) Source() *Source {
	return p.source
}

// Tracks returns the number of audio tracks received so far.
func (p *Peer) Tracks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracks
}

// Close tears down the connection and the source.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.source.Close()
	return p.pc.Close()
}
