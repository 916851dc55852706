package transport

import (
	"encoding/json"
	"log/slog"
	"net"
	"testing"

	"chat-relay/domain"

	"github.com/stretchr/testify/require"
)

func testConn(t *testing.T, userID string) *Conn {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	conn := newConn(server, slog.Default())
	conn.BindIdentity(domain.ConnectedIdentity{UserID: userID, Name: userID})
	return conn
}

// drain pops every queued frame event name without touching the socket.
func drain(conn *Conn) []string {
	var events []string
	for {
		select {
		case frame := <-conn.send:
			var f Frame
			if err := json.Unmarshal(frame, &f); err == nil {
				events = append(events, f.Event)
			}
		default:
			return events
		}
	}
}

func Test_Hub_Room_Delivery_Is_Exactly_Once(t *testing.T) {
	req := require.New(t)
	hub := NewHub(slog.Default())

	alice := testConn(t, "alice")
	bob := testConn(t, "bob")
	outsider := testConn(t, "carol")

	hub.Register("alice", alice)
	hub.Register("bob", bob)
	hub.Register("carol", outsider)

	hub.JoinRoom("room-1", alice)
	hub.JoinRoom("room-1", bob)
	// Joining twice must not double deliveries.
	hub.JoinRoom("room-1", bob)

	hub.BroadcastToRoom("room-1", domain.EventMessage, map[string]any{"content": "hi"})

	req.Equal([]string{domain.EventMessage}, drain(alice))
	req.Equal([]string{domain.EventMessage}, drain(bob))
	req.Empty(drain(outsider))
}

func Test_Hub_SendToUsers_Targets_Only_Listed_Users(t *testing.T) {
	req := require.New(t)
	hub := NewHub(slog.Default())

	alice := testConn(t, "alice")
	bob := testConn(t, "bob")
	hub.Register("alice", alice)
	hub.Register("bob", bob)

	hub.SendToUsers([]string{"alice", "ghost"}, domain.EventMessagesRead, map[string]any{"userId": "bob"})

	req.Equal([]string{domain.EventMessagesRead}, drain(alice))
	req.Empty(drain(bob))
}

func Test_Hub_Register_Returns_Previous_Socket(t *testing.T) {
	req := require.New(t)
	hub := NewHub(slog.Default())

	first := testConn(t, "alice")
	second := testConn(t, "alice")

	req.Nil(hub.Register("alice", first))
	req.Same(first, hub.Register("alice", second))

	current, ok := hub.Connection("alice")
	req.True(ok)
	req.Same(second, current)
}

func Test_Hub_Unregister_Ignores_Stale_Socket(t *testing.T) {
	req := require.New(t)
	hub := NewHub(slog.Default())

	old := testConn(t, "alice")
	fresh := testConn(t, "alice")
	hub.Register("alice", old)
	hub.JoinRoom("room-1", old)
	hub.Register("alice", fresh)
	hub.JoinRoom("room-1", fresh)

	// The evicted socket cleans up after itself without touching the
	// replacement's user binding.
	hub.Unregister("alice", old)

	current, ok := hub.Connection("alice")
	req.True(ok)
	req.Same(fresh, current)

	hub.BroadcastToRoom("room-1", domain.EventMessage, nil)
	req.Len(drain(fresh), 1)
	req.Empty(drain(old))
}

func Test_Conn_Emit_Drops_When_Buffer_Full(t *testing.T) {
	req := require.New(t)
	conn := testConn(t, "alice")

	for i := 0; i < sendBufferSize+10; i++ {
		conn.Emit(domain.EventMessage, map[string]any{"n": i})
	}

	// No blocking happened and the buffer holds at most its capacity.
	req.Len(drain(conn), sendBufferSize)
}
