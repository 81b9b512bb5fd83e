package remote

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-interview/pkg/capture"
	"github.com/teslashibe/go-interview/pkg/protocol"
)

// Conn is one browser connection.
type Conn struct {
	SessionID string
	Connected time.Time

	ws   *websocket.Conn
	sent *atomic.Uint64

	wmu sync.Mutex

	mu       sync.Mutex
	lastSeen time.Time
	closed   bool
	listens  map[string]chan capture.Fragment
	speaks   map[string]chan error
}

func newConn(sessionID string, ws *websocket.Conn, sent *atomic.Uint64) *Conn {
	now := time.Now()
	return &Conn{
		SessionID: sessionID,
		Connected: now,
		ws:        ws,
		sent:      sent,
		lastSeen:  now,
		listens:   make(map[string]chan capture.Fragment),
		speaks:    make(map[string]chan error),
	}
}

// Send writes a message to the browser.
func (c *Conn) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.sent != nil {
		c.sent.Add(1)
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *Conn) info() ClientInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientInfo{SessionID: c.SessionID, Connected: c.Connected, LastSeen: c.lastSeen}
}

func (c *Conn) close() {
	c.ws.Close()
}

// openListen registers a listen request. It returns nil once the
// connection has failed.
func (c *Conn) openListen(id string) chan capture.Fragment {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	ch := make(chan capture.Fragment, 64)
	c.listens[id] = ch
	return ch
}

func (c *Conn) deliver(f *protocol.FragmentData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.listens[f.ID]
	if !ok {
		return
	}
	select {
	case ch <- capture.Fragment{Text: f.Text, Final: f.Final, Activity: f.Activity}:
	default:
	}
}

// endListen closes the listen request, reporting err first when set.
func (c *Conn) endListen(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.listens[id]
	if !ok {
		return
	}
	delete(c.listens, id)
	if err != nil {
		select {
		case ch <- capture.Fragment{Err: err}:
		default:
		}
	}
	close(ch)
}

func (c *Conn) openSpeak(id string) chan error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	ch := make(chan error, 1)
	c.speaks[id] = ch
	return ch
}

func (c *Conn) finishSpeak(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.speaks[id]
	if !ok {
		return
	}
	delete(c.speaks, id)
	ch <- err
}

// fail ends every pending request with err and refuses new ones.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.listens {
		delete(c.listens, id)
		select {
		case ch <- capture.Fragment{Err: err}:
		default:
		}
		close(ch)
	}
	for id, ch := range c.speaks {
		delete(c.speaks, id)
		ch <- err
	}
}
