package remote

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	gorillaws "github.com/gorilla/websocket"

	"github.com/teslashibe/go-interview/pkg/capture"
	"github.com/teslashibe/go-interview/pkg/protocol"
	"github.com/teslashibe/go-interview/pkg/render"
)

func serve(t *testing.T, d *Directory) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	d.RegisterRoutes(app)
	d.RegisterAPIRoutes(app.Group("/api"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	return "ws://" + ln.Addr().String()
}

// browser is a fake speech client.
type browser struct {
	t    *testing.T
	conn *gorillaws.Conn
}

func dial(t *testing.T, base, session string) *browser {
	t.Helper()
	conn, _, err := gorillaws.DefaultDialer.Dial(base+"/ws/client/"+session, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &browser{t: t, conn: conn}
}

func (b *browser) send(msg *protocol.Message, err error) {
	b.t.Helper()
	if err != nil {
		b.t.Fatalf("build message: %v", err)
	}
	data, _ := msg.Bytes()
	if err := b.conn.WriteMessage(gorillaws.TextMessage, data); err != nil {
		b.t.Fatalf("write: %v", err)
	}
}

func (b *browser) recv() *protocol.Message {
	b.t.Helper()
	b.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := b.conn.ReadMessage()
	if err != nil {
		b.t.Fatalf("read: %v", err)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		b.t.Fatalf("parse: %v", err)
	}
	return msg
}

func waitConnected(t *testing.T, d *Directory, session string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for d.Get(session) == nil {
		if time.Now().After(deadline) {
			t.Fatal("client never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRecognizerRoundTrip(t *testing.T) {
	d := NewDirectory(nil, time.Second)
	b := dial(t, serve(t, d), "s1")

	rec := d.Recognizer("s1", "en-US")
	frags, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	msg := b.recv()
	if msg.Type != protocol.TypeListen {
		t.Fatalf("got %s, want listen", msg.Type)
	}
	var listen protocol.ListenData
	msg.ParseData(&listen)
	if listen.ID == "" || listen.Language != "en-US" {
		t.Fatalf("listen = %+v", listen)
	}

	b.send(protocol.NewMessage(protocol.TypeFragment, protocol.FragmentData{ID: listen.ID, Activity: true}))
	b.send(protocol.NewFragmentMessage(listen.ID, "I like Go", true))
	b.send(protocol.NewFragmentMessage("other-request", "ignored", true))
	b.send(protocol.NewDoneMessage(protocol.TypeListenEnd, listen.ID, ""))

	var got []capture.Fragment
	for f := range frags {
		got = append(got, f)
	}
	if len(got) != 2 || !got[0].Activity || got[1].Text != "I like Go" || !got[1].Final {
		t.Errorf("fragments = %+v", got)
	}

	if err := rec.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if msg := b.recv(); msg.Type != protocol.TypeStop {
		t.Errorf("got %s, want stop", msg.Type)
	}
}

func TestRecognizerThroughListener(t *testing.T) {
	d := NewDirectory(nil, time.Second)
	b := dial(t, serve(t, d), "s1")

	go func() {
		msg := b.recv()
		var listen protocol.ListenData
		msg.ParseData(&listen)
		b.send(protocol.NewFragmentMessage(listen.ID, "channels", false))
		b.send(protocol.NewFragmentMessage(listen.ID, "channels and select", true))
		b.send(protocol.NewDoneMessage(protocol.TypeListenEnd, listen.ID, ""))
	}()

	l := capture.NewListener(d.Recognizer("s1", "en"))
	res, err := l.Listen(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if res.Kind != capture.KindSpeech || res.Text != "channels and select" {
		t.Errorf("Listen() = %+v", res)
	}
}

func TestRecognizerClientError(t *testing.T) {
	d := NewDirectory(nil, time.Second)
	b := dial(t, serve(t, d), "s1")

	frags, err := d.Recognizer("s1", "en").Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	var listen protocol.ListenData
	b.recv().ParseData(&listen)
	b.send(protocol.NewDoneMessage(protocol.TypeListenFail, listen.ID, "not-allowed"))

	f, ok := <-frags
	if !ok || f.Err == nil || f.Err.Error() != "not-allowed" {
		t.Errorf("fragment = %+v, want client error", f)
	}
	if _, ok := <-frags; ok {
		t.Error("channel should close after the error")
	}
}

func TestNotConnected(t *testing.T) {
	d := NewDirectory(nil, 30*time.Millisecond)

	if _, err := d.Recognizer("nobody", "en").Start(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}

	err := d.Renderer("nobody").Speak(context.Background(), "hello", render.DefaultProsody())
	var renderErr *render.RenderError
	if !errors.As(err, &renderErr) || renderErr.Op != "play" || !errors.Is(err, ErrNotConnected) {
		t.Errorf("Speak() error = %v", err)
	}
}

func TestStartWaitsForClient(t *testing.T) {
	d := NewDirectory(nil, 2*time.Second)
	base := serve(t, d)

	started := make(chan error, 1)
	go func() {
		_, err := d.Recognizer("late", "en").Start(context.Background())
		started <- err
	}()

	time.Sleep(30 * time.Millisecond)
	b := dial(t, base, "late")

	if err := <-started; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if msg := b.recv(); msg.Type != protocol.TypeListen {
		t.Errorf("got %s, want listen", msg.Type)
	}
}

func TestRendererSpeak(t *testing.T) {
	d := NewDirectory(nil, time.Second)
	b := dial(t, serve(t, d), "s1")
	r := d.Renderer("s1")

	go func() {
		msg := b.recv()
		speak, _ := msg.GetSpeakData()
		if speak.Text != "Tell me about yourself." || speak.Rate != 1.2 || speak.Volume != 1 {
			t.Errorf("speak = %+v", speak)
		}
		b.send(protocol.NewDoneMessage(protocol.TypeSpoken, speak.ID, ""))
	}()

	prosody := render.DefaultProsody()
	prosody.Rate = 1.2
	if err := r.Speak(context.Background(), "Tell me about yourself.", prosody); err != nil {
		t.Errorf("Speak() error = %v", err)
	}
}

func TestRendererSpeakError(t *testing.T) {
	d := NewDirectory(nil, time.Second)
	b := dial(t, serve(t, d), "s1")

	go func() {
		speak, _ := b.recv().GetSpeakData()
		b.send(protocol.NewDoneMessage(protocol.TypeSpeakFail, speak.ID, "synthesis-failed"))
	}()

	err := d.Renderer("s1").Speak(context.Background(), "hello", render.DefaultProsody())
	var renderErr *render.RenderError
	if !errors.As(err, &renderErr) || renderErr.Op != "play" || !strings.Contains(err.Error(), "synthesis-failed") {
		t.Errorf("Speak() error = %v", err)
	}
}

func TestRendererEmptyText(t *testing.T) {
	d := NewDirectory(nil, time.Second)
	err := d.Renderer("s1").Speak(context.Background(), "", render.DefaultProsody())
	if !errors.Is(err, render.ErrEmptyText) {
		t.Errorf("Speak() error = %v, want ErrEmptyText", err)
	}
}

func TestRendererLastCallWins(t *testing.T) {
	d := NewDirectory(nil, time.Second)
	b := dial(t, serve(t, d), "s1")
	r := d.Renderer("s1")

	first := make(chan error, 1)
	go func() {
		first <- r.Speak(context.Background(), "first", render.DefaultProsody())
	}()
	firstSpeak, _ := b.recv().GetSpeakData()

	second := make(chan error, 1)
	go func() {
		second <- r.Speak(context.Background(), "second", render.DefaultProsody())
	}()

	if err := <-first; !errors.Is(err, render.ErrInterrupted) {
		t.Errorf("first Speak() error = %v, want ErrInterrupted", err)
	}

	// The superseded line is stopped and the new one requested, in either order.
	var stopped, secondID string
	for i := 0; i < 2; i++ {
		msg := b.recv()
		switch msg.Type {
		case protocol.TypeStop:
			var stop protocol.StopData
			msg.ParseData(&stop)
			stopped = stop.ID
		case protocol.TypeSpeak:
			speak, _ := msg.GetSpeakData()
			secondID = speak.ID
		}
	}
	if stopped != firstSpeak.ID {
		t.Errorf("stopped %q, want %q", stopped, firstSpeak.ID)
	}

	b.send(protocol.NewDoneMessage(protocol.TypeSpoken, secondID, ""))
	if err := <-second; err != nil {
		t.Errorf("second Speak() error = %v", err)
	}
}

func TestRendererStop(t *testing.T) {
	d := NewDirectory(nil, time.Second)
	b := dial(t, serve(t, d), "s1")
	r := d.Renderer("s1")

	done := make(chan error, 1)
	go func() {
		done <- r.Speak(context.Background(), "a long answer", render.DefaultProsody())
	}()
	b.recv()

	r.Stop()
	if err := <-done; !errors.Is(err, render.ErrInterrupted) {
		t.Errorf("Speak() error = %v, want ErrInterrupted", err)
	}
	r.Stop()
}

func TestDisconnectFailsPending(t *testing.T) {
	d := NewDirectory(nil, time.Second)
	b := dial(t, serve(t, d), "s1")

	frags, err := d.Recognizer("s1", "en").Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	b.recv()

	spoke := make(chan error, 1)
	go func() {
		spoke <- d.Renderer("s1").Speak(context.Background(), "still there?", render.DefaultProsody())
	}()
	b.recv()

	b.conn.Close()

	f := <-frags
	if !errors.Is(f.Err, ErrDisconnected) {
		t.Errorf("fragment error = %v, want ErrDisconnected", f.Err)
	}
	if err := <-spoke; !errors.Is(err, ErrDisconnected) {
		t.Errorf("Speak() error = %v, want ErrDisconnected", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if d.Count() != 0 {
		t.Errorf("Count() = %d after disconnect", d.Count())
	}
}

func TestReconnectReplacesClient(t *testing.T) {
	d := NewDirectory(nil, time.Second)
	base := serve(t, d)

	dial(t, base, "s1")
	waitConnected(t, d, "s1")
	old := d.Get("s1")

	dial(t, base, "s1")
	deadline := time.Now().Add(2 * time.Second)
	for d.Get("s1") == old && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if d.Get("s1") == old || d.Count() != 1 {
		t.Errorf("reconnect did not replace client, count=%d", d.Count())
	}
}

func TestPingPong(t *testing.T) {
	d := NewDirectory(nil, time.Second)
	b := dial(t, serve(t, d), "s1")

	b.send(protocol.NewPingMessage("p1"))
	msg := b.recv()
	pong, err := msg.GetPongData()
	if msg.Type != protocol.TypePong || err != nil || pong.ID != "p1" {
		t.Errorf("pong = %+v (%v)", pong, err)
	}

	stats := d.GetStats()
	if stats.Clients != 1 || stats.MessagesReceived != 1 || stats.MessagesSent != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestUpgradeRequired(t *testing.T) {
	d := NewDirectory(nil, time.Second)
	app := fiber.New()
	d.RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/ws/client/s1", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}
