package presence

import (
	"log/slog"
	"testing"

	"chat-relay/domain"
	"chat-relay/store"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewRegistry(store.NewMemory(), log)
}

func TestRegistry_ConnectedIdentityLifecycle(t *testing.T) {
	req := require.New(t)
	r := newRegistry(t)

	identity := domain.ConnectedIdentity{
		UserID:        "u1",
		Name:          "alice",
		AuthSessionID: "sess-1",
		ConnectionID:  "conn-1",
	}
	req.NoError(r.SetConnected(identity))

	got, found, err := r.GetConnected("u1")
	req.NoError(err)
	req.True(found)
	req.Equal(identity, got)

	req.NoError(r.ClearConnected("u1"))
	_, found, err = r.GetConnected("u1")
	req.NoError(err)
	req.False(found)
}

func TestRegistry_JoinLeaveRoom(t *testing.T) {
	req := require.New(t)
	r := newRegistry(t)

	req.NoError(r.JoinRoom("u1", "r1"))
	in, err := r.IsInRoom("u1", "r1")
	req.NoError(err)
	req.True(in)

	// Joining twice must not duplicate the membership.
	req.NoError(r.JoinRoom("u1", "r1"))
	rooms, err := r.Rooms("u1")
	req.NoError(err)
	req.Equal([]string{"r1"}, rooms)

	req.NoError(r.LeaveRoom("u1", "r1"))
	in, err = r.IsInRoom("u1", "r1")
	req.NoError(err)
	req.False(in)
}

func TestRegistry_LeaveLastRoomDeletesEntry(t *testing.T) {
	req := require.New(t)
	s := store.NewMemory()
	r := NewRegistry(s, logs.GetLoggerFromLevel(slog.LevelDebug))

	req.NoError(r.JoinRoom("u1", "r1"))
	req.NoError(r.JoinRoom("u1", "r2"))
	req.NoError(r.LeaveRoom("u1", "r1"))

	rooms, err := r.Rooms("u1")
	req.NoError(err)
	req.Equal([]string{"r2"}, rooms)

	req.NoError(r.LeaveRoom("u1", "r2"))

	// The key must be gone, not left as an empty set.
	var raw []string
	found, err := s.Get("userroom:roomids:u1", &raw)
	req.NoError(err)
	req.False(found)
}

func TestRegistry_ClearAllRooms(t *testing.T) {
	req := require.New(t)
	r := newRegistry(t)

	for _, roomID := range []string{"r1", "r2", "r3"} {
		req.NoError(r.JoinRoom("u1", roomID))
	}
	req.NoError(r.ClearAllRooms("u1"))

	rooms, err := r.Rooms("u1")
	req.NoError(err)
	req.Empty(rooms)
}
