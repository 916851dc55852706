//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=../mocks/mock_presence.go -package=mocks
package presence

import (
	"fmt"
	"log/slog"
	"sort"

	"chat-relay/domain"
	"chat-relay/store"

	"github.com/samber/lo"
)

// Key prefixes shared by every instance pointing at the same store.
const (
	connKeyPrefix  = "conn_users:userid:"
	roomsKeyPrefix = "userroom:roomids:"
)

type IRegistry interface {
	SetConnected(identity domain.ConnectedIdentity) error
	GetConnected(userID string) (domain.ConnectedIdentity, bool, error)
	ClearConnected(userID string) error
	JoinRoom(userID, roomID string) error
	LeaveRoom(userID, roomID string) error
	IsInRoom(userID, roomID string) (bool, error)
	Rooms(userID string) ([]string, error)
	ClearAllRooms(userID string) error
}

// Registry tracks connected identities and per-user room membership on
// top of the key/value store. It makes no cross-instance guarantee by
// itself: multi-instance visibility requires the shared backend.
type Registry struct {
	store store.Store
	log   *slog.Logger
}

func NewRegistry(s store.Store, log *slog.Logger) *Registry {
	return &Registry{store: s, log: log}
}

func (r *Registry) SetConnected(identity domain.ConnectedIdentity) error {
	return r.store.Set(connKey(identity.UserID), identity, 0)
}

func (r *Registry) GetConnected(userID string) (domain.ConnectedIdentity, bool, error) {
	var identity domain.ConnectedIdentity
	found, err := r.store.Get(connKey(userID), &identity)
	return identity, found, err
}

func (r *Registry) ClearConnected(userID string) error {
	return r.store.Delete(connKey(userID))
}

func (r *Registry) JoinRoom(userID, roomID string) error {
	rooms, err := r.Rooms(userID)
	if err != nil {
		return err
	}
	if lo.Contains(rooms, roomID) {
		return nil
	}
	rooms = append(rooms, roomID)
	sort.Strings(rooms)
	return r.store.Set(roomsKey(userID), rooms, 0)
}

// LeaveRoom removes roomID from the user's membership set. The key is
// deleted entirely when the set empties; an empty set is never stored.
func (r *Registry) LeaveRoom(userID, roomID string) error {
	rooms, err := r.Rooms(userID)
	if err != nil {
		return err
	}
	remaining := lo.Without(rooms, roomID)
	if len(remaining) == len(rooms) {
		return nil
	}
	if len(remaining) == 0 {
		return r.store.Delete(roomsKey(userID))
	}
	return r.store.Set(roomsKey(userID), remaining, 0)
}

func (r *Registry) IsInRoom(userID, roomID string) (bool, error) {
	rooms, err := r.Rooms(userID)
	if err != nil {
		return false, err
	}
	return lo.Contains(rooms, roomID), nil
}

func (r *Registry) Rooms(userID string) ([]string, error) {
	var rooms []string
	found, err := r.store.Get(roomsKey(userID), &rooms)
	if err != nil || !found {
		return nil, err
	}
	return rooms, nil
}

// ClearAllRooms leaves every room the user is currently in. Used on
// disconnect.
func (r *Registry) ClearAllRooms(userID string) error {
	rooms, err := r.Rooms(userID)
	if err != nil {
		return err
	}
	for _, roomID := range rooms {
		if err := r.LeaveRoom(userID, roomID); err != nil {
			return fmt.Errorf("leave room %s: %w", roomID, err)
		}
	}
	return nil
}

func connKey(userID string) string  { return connKeyPrefix + userID }
func roomsKey(userID string) string { return roomsKeyPrefix + userID }
