// Package remote lets a candidate's browser do speech recognition and
// synthesis locally. Browsers connect on /ws/client/:id; the Directory
// exposes each session's connection as a capture.Recognizer and a
// render.Port that exchange protocol envelopes with the page.
package remote

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-interview/pkg/protocol"
)

// Sentinel errors.
var (
	// ErrNotConnected is returned when no browser joined in time.
	ErrNotConnected = errors.New("remote: client not connected")

	// ErrDisconnected fails requests pending on a connection that dropped.
	ErrDisconnected = errors.New("remote: client disconnected")
)

// DefaultConnectTimeout is how long requests wait for a browser to join.
const DefaultConnectTimeout = 30 * time.Second

// Directory tracks the browser connection of each session.
type Directory struct {
	logger         *slog.Logger
	connectTimeout time.Duration

	mu      sync.RWMutex
	conns   map[string]*Conn
	changed chan struct{}

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
}

// NewDirectory creates an empty directory.
func NewDirectory(logger *slog.Logger, connectTimeout time.Duration) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &Directory{
		logger:         logger.With("component", "remote"),
		connectTimeout: connectTimeout,
		conns:          make(map[string]*Conn),
		changed:        make(chan struct{}),
	}
}

// RegisterRoutes registers the client WebSocket endpoint on a Fiber app.
func (d *Directory) RegisterRoutes(app fiber.Router) {
	app.Use("/ws/client", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/client/:id", websocket.New(d.handleClient))
}

func (d *Directory) handleClient(c *websocket.Conn) {
	conn := newConn(c.Params("id"), c, &d.messagesSent)
	prev := d.attach(conn)
	if prev != nil {
		prev.fail(ErrDisconnected)
		prev.close()
	}
	d.logger.Info("client connected", "session", conn.SessionID, "replaced", prev != nil)

	defer func() {
		d.detach(conn)
		conn.fail(ErrDisconnected)
		d.logger.Info("client disconnected", "session", conn.SessionID)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			d.logger.Debug("client read ended", "session", conn.SessionID, "error", err)
			return
		}
		d.messagesReceived.Add(1)
		conn.touch()
		d.handleMessage(conn, data)
	}
}

func (d *Directory) handleMessage(conn *Conn, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		d.logger.Warn("bad client message", "session", conn.SessionID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeHello:
		if hello, err := msg.GetHelloData(); err == nil {
			d.logger.Info("client hello", "session", conn.SessionID, "capabilities", hello.Capabilities)
		}

	case protocol.TypeFragment:
		if frag, err := msg.GetFragmentData(); err == nil {
			conn.deliver(frag)
		}

	case protocol.TypeListenEnd, protocol.TypeListenFail:
		if done, err := msg.GetDoneData(); err == nil {
			conn.endListen(done.ID, clientError(msg.Type, done.Error))
		}

	case protocol.TypeSpoken, protocol.TypeSpeakFail:
		if done, err := msg.GetDoneData(); err == nil {
			conn.finishSpeak(done.ID, clientError(msg.Type, done.Error))
		}

	case protocol.TypePing:
		ping, _ := msg.GetPingData()
		id := ""
		if ping != nil {
			id = ping.ID
		}
		if pong, err := protocol.NewPongMessage(id, msg.Timestamp, time.Now().UnixMilli()); err == nil {
			conn.Send(pong)
		}
	}
}

func clientError(typ protocol.MessageType, msg string) error {
	if typ != protocol.TypeListenFail && typ != protocol.TypeSpeakFail {
		return nil
	}
	if msg == "" {
		msg = string(typ)
	}
	return errors.New(msg)
}

// attach installs conn for its session and returns the connection it
// replaced, if any.
func (d *Directory) attach(conn *Conn) *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.conns[conn.SessionID]
	d.conns[conn.SessionID] = conn
	close(d.changed)
	d.changed = make(chan struct{})
	return prev
}

func (d *Directory) detach(conn *Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conns[conn.SessionID] == conn {
		delete(d.conns, conn.SessionID)
	}
}

// Get returns the live connection for a session, or nil.
func (d *Directory) Get(sessionID string) *Conn {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.conns[sessionID]
}

// Count returns the number of connected clients.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}

// Stats contains directory statistics
type Stats struct {
	Clients          int    `json:"clients"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
}

// GetStats returns directory statistics
func (d *Directory) GetStats() Stats {
	return Stats{
		Clients:          d.Count(),
		MessagesReceived: d.messagesReceived.Load(),
		MessagesSent:     d.messagesSent.Load(),
	}
}

// ClientInfo describes a connected client.
type ClientInfo struct {
	SessionID string    `json:"session_id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// Clients returns info about all connected clients.
func (d *Directory) Clients() []ClientInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	infos := make([]ClientInfo, 0, len(d.conns))
	for _, c := range d.conns {
		infos = append(infos, c.info())
	}
	return infos
}

// RegisterAPIRoutes registers client listing routes.
func (d *Directory) RegisterAPIRoutes(api fiber.Router) {
	clients := api.Group("/clients")

	clients.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"clients": d.Clients(),
			"count":   d.Count(),
		})
	})

	clients.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(d.GetStats())
	})
}
