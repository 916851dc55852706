//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IRoomRepository interface {
	CreateRoom(name, creatorID string) (domain.Room, error)
	GetRoom(roomID string) (domain.Room, error)
	AddParticipant(roomID, userID string) (domain.Room, error)
	RemoveParticipant(roomID, userID string) (domain.Room, error)
	ListRooms() ([]domain.Room, error)
}

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) IRoomRepository {
	return &RoomRepository{db: db}
}

func (r RoomRepository) CreateRoom(name, creatorID string) (domain.Room, error) {
	room := domain.Room{
		ID:             uuid.New().String(),
		Name:           name,
		CreatorID:      creatorID,
		ParticipantIDs: []string{creatorID},
		CreatedAt:      time.Now().UTC(),
	}
	bytes, err := json.Marshal(room)
	if err != nil {
		return domain.Room{}, err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("room:"+room.ID), bytes)
	})
	return room, err
}

func (r RoomRepository) GetRoom(roomID string) (domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		return readRoom(txn, roomID, &room)
	})
	return room, err
}

func (r RoomRepository) AddParticipant(roomID, userID string) (domain.Room, error) {
	return r.updateParticipants(roomID, func(room *domain.Room) {
		if !room.HasParticipant(userID) {
			room.ParticipantIDs = append(room.ParticipantIDs, userID)
		}
	})
}

func (r RoomRepository) RemoveParticipant(roomID, userID string) (domain.Room, error) {
	return r.updateParticipants(roomID, func(room *domain.Room) {
		room.ParticipantIDs = lo.Without(room.ParticipantIDs, userID)
	})
}

func (r RoomRepository) ListRooms() ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var room domain.Room
				if err := json.Unmarshal(val, &room); err != nil {
					return err
				}
				rooms = append(rooms, room)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rooms, err
}

func (r RoomRepository) updateParticipants(roomID string, mutate func(*domain.Room)) (domain.Room, error) {
	var room domain.Room
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := readRoom(txn, roomID, &room); err != nil {
			return err
		}
		mutate(&room)
		bytes, err := json.Marshal(room)
		if err != nil {
			return err
		}
		return txn.Set([]byte("room:"+roomID), bytes)
	})
	return room, err
}

func readRoom(txn *badger.Txn, roomID string, into *domain.Room) error {
	item, err := txn.Get([]byte("room:" + roomID))
	if err != nil {
		return errors.ErrRoomNotFound
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, into)
	})
}
