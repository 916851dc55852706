package transport

import (
	"log/slog"
	"sync"
)

// Hub is the local connection registry: one socket per user and the set
// of sockets joined to each room. It implements broadcast.LocalDispatcher
// so relayed events reach local sockets the same way direct fan-out does.
// Each socket is a set member, so a room delivery hits it exactly once.
type Hub struct {
	mu    sync.RWMutex
	log   *slog.Logger
	users map[string]*Conn
	rooms map[string]map[*Conn]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:   log,
		users: make(map[string]*Conn),
		rooms: make(map[string]map[*Conn]struct{}),
	}
}

// Register binds a user to a socket and returns the previous socket if
// the user was already connected, for single-active-device eviction.
func (h *Hub) Register(userID string, conn *Conn) *Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	previous := h.users[userID]
	h.users[userID] = conn
	return previous
}

// Unregister removes the socket everywhere it appears. It is a no-op if
// a newer socket already replaced this one for the user.
func (h *Hub) Unregister(userID string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == conn {
		delete(h.users, userID)
	}
	for roomID, members := range h.rooms {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) JoinRoom(roomID string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Conn]struct{})
		h.rooms[roomID] = members
	}
	members[conn] = struct{}{}
}

func (h *Hub) LeaveRoom(roomID string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// Connection returns the current socket of a user, if any.
func (h *Hub) Connection(userID string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.users[userID]
	return conn, ok
}

// BroadcastToRoom delivers an event to every socket joined to the room.
func (h *Hub) BroadcastToRoom(roomID, event string, payload any) {
	h.mu.RLock()
	members := make([]*Conn, 0, len(h.rooms[roomID]))
	for conn := range h.rooms[roomID] {
		members = append(members, conn)
	}
	h.mu.RUnlock()

	for _, conn := range members {
		conn.Emit(event, payload)
	}
}

// SendToUsers delivers an event only to the listed users' sockets.
func (h *Hub) SendToUsers(userIDs []string, event string, payload any) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(userIDs))
	for _, userID := range userIDs {
		if conn, ok := h.users[userID]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		conn.Emit(event, payload)
	}
}
