package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-interview/pkg/audioio"
	"github.com/teslashibe/go-interview/pkg/capture"
)

type fakeServer struct {
	setup  chan sessionUpdate
	audio  chan string
	header chan http.Header
}

// transcriptionServer accepts one session, records what the client sends
// and replies with events once the first audio chunk arrives.
func transcriptionServer(t *testing.T, events []map[string]interface{}) (*httptest.Server, *fakeServer) {
	t.Helper()
	fs := &fakeServer{
		setup:  make(chan sessionUpdate, 1),
		audio:  make(chan string, 100),
		header: make(chan http.Header, 1),
	}
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("intent") != "transcription" {
			t.Errorf("intent = %q", r.URL.Query().Get("intent"))
		}
		fs.header <- r.Header.Clone()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var update sessionUpdate
		if err := conn.ReadJSON(&update); err != nil {
			return
		}
		fs.setup <- update

		sent := false
		for {
			var msg audioAppend
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case fs.audio <- msg.Audio:
			default:
			}
			if !sent {
				sent = true
				for _, ev := range events {
					conn.WriteJSON(ev)
				}
			}
		}
	}))
	t.Cleanup(server.Close)
	return server, fs
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func mockSource() *audioio.MockSource {
	cfg := audioio.DefaultConfig()
	cfg.SampleRate = 16000
	cfg.BufferDuration = 10 * time.Millisecond
	return audioio.NewMockSource(cfg, nil, audioio.WithSineWave(440, 0.3))
}

func collect(t *testing.T, frags <-chan capture.Fragment, n int) []capture.Fragment {
	t.Helper()
	var out []capture.Fragment
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case f, ok := <-frags:
			if !ok {
				return out
			}
			out = append(out, f)
		case <-timeout:
			t.Fatalf("got %d of %d fragments", len(out), n)
		}
	}
	return out
}

func TestRealtimeFragments(t *testing.T) {
	server, fs := transcriptionServer(t, []map[string]interface{}{
		{"type": eventSpeechStarted},
		{"type": eventDelta, "item_id": "item-1", "delta": "I like "},
		{"type": eventDelta, "item_id": "item-1", "delta": "Go"},
		{"type": "session.updated"},
		{"type": eventCompleted, "item_id": "item-1", "transcript": "I like Go."},
	})

	rec, err := NewRealtime(mockSource(), WithAPIKey("sk-test"), WithURL(wsURL(server)), WithLanguage("de"))
	if err != nil {
		t.Fatal(err)
	}
	frags, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rec.Stop()

	got := collect(t, frags, 4)
	want := []capture.Fragment{
		{Activity: true},
		{Text: "I like "},
		{Text: "I like Go"},
		{Text: "I like Go.", Final: true},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fragment %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	h := <-fs.header
	if h.Get("Authorization") != "Bearer sk-test" || h.Get("OpenAI-Beta") != "realtime=v1" {
		t.Errorf("headers = %v", h)
	}
	setup := <-fs.setup
	if setup.Type != eventSessionUpdate || setup.Session.InputAudioFormat != "pcm16" {
		t.Errorf("setup = %+v", setup)
	}
	if setup.Session.InputAudioTranscription.Model != DefaultModel || setup.Session.InputAudioTranscription.Language != "de" {
		t.Errorf("transcription = %+v", setup.Session.InputAudioTranscription)
	}
	if setup.Session.TurnDetection.SilenceDurationMs != 500 {
		t.Errorf("turn detection = %+v", setup.Session.TurnDetection)
	}

	// 10ms at 16 kHz is resampled to 240 samples at 24 kHz.
	raw, err := base64.StdEncoding.DecodeString(<-fs.audio)
	if err != nil {
		t.Fatalf("audio payload: %v", err)
	}
	if n := len(raw); n < 476 || n > 480 {
		t.Errorf("audio payload %d bytes, want ~480", n)
	}
}

func TestRealtimeErrorEvent(t *testing.T) {
	server, _ := transcriptionServer(t, []map[string]interface{}{
		{"type": "error", "error": map[string]string{"type": "invalid_request_error", "code": "bad_model", "message": "nope"}},
	})

	rec, _ := NewRealtime(mockSource(), WithAPIKey("k"), WithURL(wsURL(server)))
	frags, err := rec.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Stop()

	got := collect(t, frags, 1)
	var evErr *EventError
	if !errors.As(got[0].Err, &evErr) || evErr.Code != "bad_model" {
		t.Fatalf("fragment = %+v", got[0])
	}
	if _, ok := <-frags; ok {
		t.Error("channel should close after an error event")
	}
}

func TestRealtimeWithListener(t *testing.T) {
	server, _ := transcriptionServer(t, []map[string]interface{}{
		{"type": eventCompleted, "item_id": "a", "transcript": "Five years of Go."},
	})
	rec, _ := NewRealtime(mockSource(), WithAPIKey("k"), WithURL(wsURL(server)))
	l := capture.NewListener(rec)

	res, err := l.Listen(context.Background(), 300*time.Millisecond)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if res.Kind != capture.KindSpeech || res.Text != "Five years of Go." {
		t.Errorf("result = %+v", res)
	}
}

func TestRealtimeStartTwice(t *testing.T) {
	server, _ := transcriptionServer(t, nil)
	rec, _ := NewRealtime(mockSource(), WithAPIKey("k"), WithURL(wsURL(server)))

	if _, err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second start = %v", err)
	}
	if err := rec.Stop(); err != nil {
		t.Errorf("stop: %v", err)
	}
	if err := rec.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestRealtimeConfig(t *testing.T) {
	if _, err := NewRealtime(mockSource()); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("missing key = %v", err)
	}
	if _, err := NewRealtime(nil, WithAPIKey("k")); !errors.Is(err, ErrNoSource) {
		t.Errorf("missing source = %v", err)
	}
	rec, _ := NewRealtime(mockSource(), WithAPIKey("k"), WithURL("ws://127.0.0.1:1"))
	if _, err := rec.Start(context.Background()); err == nil {
		t.Error("expected dial error")
	}
}

func TestEventErrorMessage(t *testing.T) {
	e := &EventError{Type: "server_error", Message: "boom"}
	if e.Error() != "stt: server_error: boom" {
		t.Errorf("Error() = %q", e.Error())
	}
	raw, _ := json.Marshal(map[string]interface{}{"type": "error", "error": e})
	var ev serverEvent
	json.Unmarshal(raw, &ev)
	if ev.Error == nil || ev.Error.Message != "boom" {
		t.Errorf("decoded = %+v", ev)
	}
}
