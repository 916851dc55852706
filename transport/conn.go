package transport

import (
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"chat-relay/domain"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 5 * time.Second

	// Time allowed to read the next message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBufferSize = 64
)

// Frame is the wire format of every socket message, inbound or outbound.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Conn wraps one websocket connection. All writes go through the send
// channel and a single write pump, so concurrent Emit calls never
// interleave frames.
type Conn struct {
	ID   string
	sock net.Conn
	log  *slog.Logger

	send      chan []byte
	closeOnce sync.Once

	mu       sync.RWMutex
	identity *domain.ConnectedIdentity
}

func newConn(sock net.Conn, log *slog.Logger) *Conn {
	return &Conn{
		ID:   uuid.New().String(),
		sock: sock,
		log:  log,
		send: make(chan []byte, sendBufferSize),
	}
}

// BindIdentity attaches the authenticated identity after the handshake.
func (c *Conn) BindIdentity(identity domain.ConnectedIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = &identity
}

func (c *Conn) Identity() (domain.ConnectedIdentity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return domain.ConnectedIdentity{}, false
	}
	return *c.identity, true
}

// Emit queues an outbound frame. A full send buffer drops the frame
// instead of blocking the caller.
func (c *Conn) Emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("Failed to marshal outbound payload", "event", event, "err", err)
		return
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		c.log.Error("Failed to marshal outbound frame", "event", event, "err", err)
		return
	}
	select {
	case c.send <- frame:
	default:
		c.log.Warn("Send buffer full, dropping frame", "conn", c.ID, "event", event)
	}
}

// Close shuts the underlying socket down exactly once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		_ = c.sock.Close()
	})
}

// writePump is the only goroutine writing to the socket. It also keeps
// the connection alive with periodic pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = wsutil.WriteServerMessage(c.sock, ws.OpClose, nil)
				return
			}
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(c.sock, ws.OpText, frame); err != nil {
				c.log.Debug("Write failed, closing connection", "conn", c.ID, "err", err)
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(c.sock, ws.OpPing, nil); err != nil {
				c.log.Debug("Ping failed, closing connection", "conn", c.ID, "err", err)
				return
			}
		}
	}
}
