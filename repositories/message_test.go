package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedMessages(t *testing.T, repository MessageRepository, roomID string, count int) []domain.Message {
	t.Helper()
	at := time.Now().UTC().Truncate(time.Millisecond)
	var messages []domain.Message
	for i := 0; i < count; i++ {
		message := domain.Message{
			ID:        uuid.New().String(),
			RoomID:    roomID,
			SenderID:  "alice",
			Type:      domain.MessageTypeText,
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: at.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repository.StoreMessage(message))
		messages = append(messages, message)
	}
	return messages
}

func Test_Store_And_Fetch_Messages_Newest_First(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)

	stored := seedMessages(t, repository, "room-1", 3)

	fetched, _, err := repository.GetMessages("room-1", nil)
	req.NoError(err)
	req.Len(fetched, 3)
	// Reverse scan returns the newest message first.
	req.Equal(stored[2].Content, fetched[0].Content)
	req.Equal(stored[0].Content, fetched[2].Content)
}

func Test_Fetch_Messages_Paginates_With_Cursor(t *testing.T) {
	req := require.New(t)
	limit := 2
	repository := NewMessageRepository(openTestDB(t), slog.Default(), &limit)

	stored := seedMessages(t, repository, "room-1", 5)

	firstPage, cursor, err := repository.GetMessages("room-1", nil)
	req.NoError(err)
	req.Len(firstPage, limit)
	req.NotNil(cursor)

	secondPage, _, err := repository.GetMessages("room-1", cursor)
	req.NoError(err)
	req.Len(secondPage, limit)

	// No overlap between the two pages.
	firstIDs := lo.Map(firstPage, func(m domain.Message, _ int) string { return m.ID })
	for _, m := range secondPage {
		req.NotContains(firstIDs, m.ID)
	}
	req.Equal(stored[4].ID, firstPage[0].ID)
	req.Equal(stored[2].ID, secondPage[0].ID)
}

func Test_Fetch_Messages_Ignores_Other_Rooms(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)

	seedMessages(t, repository, "room-1", 2)
	seedMessages(t, repository, "room-2", 1)

	fetched, _, err := repository.GetMessages("room-1", nil)
	req.NoError(err)
	req.Len(fetched, 2)
}

func Test_Mark_As_Read_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)

	stored := seedMessages(t, repository, "room-1", 2)
	ids := []string{stored[0].ID, stored[1].ID}
	readAt := time.Now().UTC()

	updated, err := repository.MarkAsRead("room-1", "bob", ids, readAt)
	req.NoError(err)
	req.Len(updated, 2)
	req.True(updated[0].HasReader("bob"))

	// A second receipt for the same user updates nothing.
	updated, err = repository.MarkAsRead("room-1", "bob", ids, readAt)
	req.NoError(err)
	req.Empty(updated)

	// Unknown message IDs are skipped, not fatal.
	updated, err = repository.MarkAsRead("room-1", "clara", []string{"missing", stored[0].ID}, readAt)
	req.NoError(err)
	req.Len(updated, 1)
}

func Test_Toggle_Reaction_Add_Then_Remove(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)

	stored := seedMessages(t, repository, "room-1", 1)
	messageID := stored[0].ID

	message, err := repository.ToggleReaction(messageID, "bob", "👍", "add")
	req.NoError(err)
	req.Equal([]string{"bob"}, message.Reactions["👍"])

	// Adding twice keeps a single entry.
	message, err = repository.ToggleReaction(messageID, "bob", "👍", "add")
	req.NoError(err)
	req.Equal([]string{"bob"}, message.Reactions["👍"])

	message, err = repository.ToggleReaction(messageID, "bob", "👍", "remove")
	req.NoError(err)
	req.NotContains(message.Reactions, "👍")

	_, err = repository.ToggleReaction("missing", "bob", "👍", "add")
	req.ErrorIs(err, errors.ErrMessageNotFound)
}
