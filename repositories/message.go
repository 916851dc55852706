//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetMessages(roomID string, cursor *string) ([]domain.Message, *string, error)
	MarkAsRead(roomID, userID string, messageIDs []string, readAt time.Time) ([]domain.Message, error)
	ToggleReaction(messageID, userID, reaction, action string) (domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{message_id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the message ID as a collision disconnector if two
//     messages arrive at the same nanosecond.
//
// A secondary "msgidx:{message_id}" entry points back at the primary key so that
// read receipts and reactions can address a message by ID alone.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.RoomID,
		message.Timestamp.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err = txn.Set([]byte(key), bytes); err != nil {
			return err
		}
		return txn.Set([]byte("msgidx:"+message.ID), []byte(key))
	})
}

// GetMessages retrieves messages for a specific room using a prefix scan.
// Thanks to the padded timestamp in the key, messages are naturally sorted by time.
// The scan runs in reverse so the newest page comes first, and it stops once the
// configured limitMessages is reached.
func (m MessageRepository) GetMessages(roomID string, cursor *string) ([]domain.Message, *string, error) {
	var byteMessages [][]byte
	var messages []domain.Message
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", roomID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(byteMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				byteMessages = append(byteMessages, value)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, b := range byteMessages {
		var message domain.Message
		if err = json.Unmarshal(b, &message); err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	return messages, &lastKey, err
}

// MarkAsRead records a read receipt for each message the user had not read yet
// and returns the updated messages.
func (m MessageRepository) MarkAsRead(roomID, userID string, messageIDs []string, readAt time.Time) ([]domain.Message, error) {
	var updated []domain.Message
	err := m.db.Update(func(txn *badger.Txn) error {
		for _, messageID := range messageIDs {
			message, key, err := messageByID(txn, messageID)
			if err != nil {
				if err == errors.ErrMessageNotFound {
					continue
				}
				return err
			}
			if message.RoomID != roomID || message.HasReader(userID) {
				continue
			}
			message.Readers = append(message.Readers, domain.MessageReader{
				UserID: userID,
				ReadAt: readAt,
			})
			bytes, err := json.Marshal(message)
			if err != nil {
				return err
			}
			if err = txn.Set([]byte(key), bytes); err != nil {
				return err
			}
			updated = append(updated, message)
		}
		return nil
	})
	return updated, err
}

// ToggleReaction adds or removes a user from a reaction set on a message.
// Adding is idempotent and an emptied set is dropped from the map.
func (m MessageRepository) ToggleReaction(messageID, userID, reaction, action string) (domain.Message, error) {
	var message domain.Message
	err := m.db.Update(func(txn *badger.Txn) error {
		var key string
		var err error
		message, key, err = messageByID(txn, messageID)
		if err != nil {
			return err
		}
		if message.Reactions == nil {
			message.Reactions = make(map[string][]string)
		}
		switch action {
		case "add":
			if !lo.Contains(message.Reactions[reaction], userID) {
				message.Reactions[reaction] = append(message.Reactions[reaction], userID)
			}
		case "remove":
			remaining := lo.Without(message.Reactions[reaction], userID)
			if len(remaining) == 0 {
				delete(message.Reactions, reaction)
			} else {
				message.Reactions[reaction] = remaining
			}
		}
		bytes, err := json.Marshal(message)
		if err != nil {
			return err
		}
		return txn.Set([]byte(key), bytes)
	})
	return message, err
}

func messageByID(txn *badger.Txn, messageID string) (domain.Message, string, error) {
	item, err := txn.Get([]byte("msgidx:" + messageID))
	if err != nil {
		return domain.Message{}, "", errors.ErrMessageNotFound
	}
	var key string
	if err = item.Value(func(val []byte) error {
		key = string(val)
		return nil
	}); err != nil {
		return domain.Message{}, "", err
	}
	item, err = txn.Get([]byte(key))
	if err != nil {
		return domain.Message{}, "", errors.ErrMessageNotFound
	}
	var message domain.Message
	if err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &message)
	}); err != nil {
		return domain.Message{}, "", err
	}
	return message, key, nil
}
