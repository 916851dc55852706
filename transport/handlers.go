package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/broadcast"
	"chat-relay/domain"
	"chat-relay/pipeline"
	"chat-relay/presence"
	"chat-relay/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Handlers binds the socket event vocabulary to the domain services.
type Handlers struct {
	log       *slog.Logger
	validate  *validator.Validate
	hub       *Hub
	presence  presence.IRegistry
	rooms     repositories.IRoomRepository
	messages  repositories.IMessageRepository
	publisher broadcast.IPublisher
	ingestor  *pipeline.Ingestor
}

func NewHandlers(log *slog.Logger, hub *Hub, registry presence.IRegistry,
	rooms repositories.IRoomRepository, messages repositories.IMessageRepository,
	publisher broadcast.IPublisher, ingestor *pipeline.Ingestor) *Handlers {
	return &Handlers{
		log:       log,
		validate:  validator.New(),
		hub:       hub,
		presence:  registry,
		rooms:     rooms,
		messages:  messages,
		publisher: publisher,
		ingestor:  ingestor,
	}
}

func (h *Handlers) RegisterAll(router *Router) {
	router.Register(domain.EventChatMessage, h.ChatMessage)
	router.Register(domain.EventJoinRoom, h.JoinRoom)
	router.Register(domain.EventLeaveRoom, h.LeaveRoom)
	router.Register(domain.EventMarkMessagesAsRead, h.MarkMessagesAsRead)
	router.Register(domain.EventMessageReaction, h.MessageReaction)
	router.Register(domain.EventFetchPreviousMessages, h.FetchPreviousMessages)
}

func (h *Handlers) ChatMessage(ctx context.Context, conn *Conn, data json.RawMessage) {
	var req domain.ChatMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.ingestor.HandleChatMessage(ctx, conn, nil)
		return
	}
	h.ingestor.HandleChatMessage(ctx, conn, &req)
}

type joinRoomRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

// JoinRoom registers membership in the presence registry, the local hub
// and the room record, then announces the join. Re-joining a room the
// user already belongs to succeeds without a second announcement.
func (h *Handlers) JoinRoom(ctx context.Context, conn *Conn, data json.RawMessage) {
	identity, ok := conn.Identity()
	if !ok {
		conn.Emit(domain.EventJoinRoomError, errorBody("No session bound to connection"))
		return
	}
	var req joinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil || h.validate.Struct(&req) != nil {
		conn.Emit(domain.EventJoinRoomError, errorBody("Room id is missing"))
		return
	}

	room, err := h.rooms.GetRoom(req.RoomID)
	if err != nil {
		conn.Emit(domain.EventJoinRoomError, errorBody("Room not found"))
		return
	}

	alreadyMember := room.HasParticipant(identity.UserID)
	if !alreadyMember {
		if room, err = h.rooms.AddParticipant(req.RoomID, identity.UserID); err != nil {
			conn.Emit(domain.EventJoinRoomError, errorBody("Failed to join room"))
			return
		}
	}
	if err = h.presence.JoinRoom(identity.UserID, req.RoomID); err != nil {
		conn.Emit(domain.EventJoinRoomError, errorBody("Failed to join room"))
		return
	}
	h.hub.JoinRoom(req.RoomID, conn)

	if !alreadyMember {
		announcement := systemMessage(req.RoomID, fmt.Sprintf("%s joined the room", identity.Name))
		h.fanout(req.RoomID, domain.EventMessage, domain.BroadcastRoomJoin, announcement)
		h.announceParticipants(req.RoomID, room.ParticipantIDs)
	}

	conn.Emit(domain.EventJoinRoomSuccess, map[string]any{
		"roomId":       room.ID,
		"participants": room.ParticipantIDs,
	})
}

func (h *Handlers) LeaveRoom(ctx context.Context, conn *Conn, data json.RawMessage) {
	identity, ok := conn.Identity()
	if !ok {
		return
	}
	var req joinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil || h.validate.Struct(&req) != nil {
		conn.Emit(domain.EventError, errorBody("Room id is missing"))
		return
	}

	if err := h.presence.LeaveRoom(identity.UserID, req.RoomID); err != nil {
		h.log.Error("Failed to leave room", "user", identity.UserID, "room", req.RoomID, "err", err)
	}
	h.hub.LeaveRoom(req.RoomID, conn)

	room, err := h.rooms.RemoveParticipant(req.RoomID, identity.UserID)
	if err != nil {
		h.log.Error("Failed to update room record", "room", req.RoomID, "err", err)
		return
	}

	announcement := systemMessage(req.RoomID, fmt.Sprintf("%s left the room", identity.Name))
	h.fanout(req.RoomID, domain.EventMessage, domain.BroadcastRoomLeave, announcement)
	h.announceParticipants(req.RoomID, room.ParticipantIDs)
}

// MarkMessagesAsRead records read receipts and notifies only the
// original senders of the read messages, locally and across instances.
func (h *Handlers) MarkMessagesAsRead(ctx context.Context, conn *Conn, data json.RawMessage) {
	identity, ok := conn.Identity()
	if !ok {
		return
	}
	var req domain.MarkAsReadRequest
	if err := json.Unmarshal(data, &req); err != nil || h.validate.Struct(&req) != nil {
		conn.Emit(domain.EventError, errorBody("Message ids are missing"))
		return
	}

	readAt := time.Now().UTC()
	updated, err := h.messages.MarkAsRead(req.RoomID, identity.UserID, req.MessageIDs, readAt)
	if err != nil {
		h.log.Error("Failed to mark messages as read", "user", identity.UserID, "err", err)
		conn.Emit(domain.EventError, errorBody("Failed to mark messages as read"))
		return
	}
	if len(updated) == 0 {
		return
	}

	senders := lo.Uniq(lo.FilterMap(updated, func(m domain.Message, _ int) (string, bool) {
		return m.SenderID, m.SenderID != identity.UserID
	}))
	payload := map[string]any{
		"roomId": req.RoomID,
		"userId": identity.UserID,
		"messageIds": lo.Map(updated, func(m domain.Message, _ int) string {
			return m.ID
		}),
		"readAt": readAt.UnixMilli(),
	}

	conn.Emit(domain.EventMessagesRead, payload)
	if len(senders) == 0 {
		return
	}
	h.hub.SendToUsers(senders, domain.EventMessagesRead, payload)
	if err = h.publisher.PublishToUsers(domain.BroadcastMessagesRead, req.RoomID, senders, payload); err != nil {
		h.log.Error("Failed to publish read receipts", "room", req.RoomID, "err", err)
	}
}

func (h *Handlers) MessageReaction(ctx context.Context, conn *Conn, data json.RawMessage) {
	identity, ok := conn.Identity()
	if !ok {
		return
	}
	var req domain.MessageReactionRequest
	if err := json.Unmarshal(data, &req); err != nil || h.validate.Struct(&req) != nil {
		conn.Emit(domain.EventError, errorBody("Invalid reaction request"))
		return
	}

	message, err := h.messages.ToggleReaction(req.MessageID, identity.UserID, req.Reaction, req.Type)
	if err != nil {
		conn.Emit(domain.EventError, errorBody("Message not found"))
		return
	}

	payload := map[string]any{
		"messageId": message.ID,
		"roomId":    message.RoomID,
		"reactions": message.Reactions,
	}
	h.fanout(message.RoomID, domain.EventMessageReactionUpdate, domain.BroadcastMessageReactionUpdate, payload)
}

func (h *Handlers) FetchPreviousMessages(ctx context.Context, conn *Conn, data json.RawMessage) {
	identity, ok := conn.Identity()
	if !ok {
		return
	}
	var req domain.FetchMessagesRequest
	if err := json.Unmarshal(data, &req); err != nil || h.validate.Struct(&req) != nil {
		conn.Emit(domain.EventError, errorBody("Room id is missing"))
		return
	}

	member, err := h.presence.IsInRoom(identity.UserID, req.RoomID)
	if err != nil || !member {
		conn.Emit(domain.EventError, errorBody("Not a member of this room"))
		return
	}

	page, cursor, err := h.messages.GetMessages(req.RoomID, req.Before)
	if err != nil {
		h.log.Error("Failed to load message history", "room", req.RoomID, "err", err)
		conn.Emit(domain.EventError, errorBody("Failed to load messages"))
		return
	}

	conn.Emit(domain.EventPreviousMessagesLoaded, map[string]any{
		"roomId":   req.RoomID,
		"messages": page,
		"before":   cursor,
		"hasMore":  len(page) > 0,
	})
}

// Disconnect tears down everything this socket registered: hub entries,
// presence rooms and the connected identity. Room participant records
// survive the disconnect, only presence is cleared.
func (h *Handlers) Disconnect(conn *Conn) {
	identity, ok := conn.Identity()
	if !ok {
		return
	}

	roomIDs, err := h.presence.Rooms(identity.UserID)
	if err != nil {
		h.log.Error("Failed to list rooms on disconnect", "user", identity.UserID, "err", err)
	}
	h.hub.Unregister(identity.UserID, conn)
	if err = h.presence.ClearAllRooms(identity.UserID); err != nil {
		h.log.Error("Failed to clear room membership", "user", identity.UserID, "err", err)
	}
	if err = h.presence.ClearConnected(identity.UserID); err != nil {
		h.log.Error("Failed to clear connected identity", "user", identity.UserID, "err", err)
	}

	for _, roomID := range roomIDs {
		payload := map[string]any{"roomId": roomID, "userId": identity.UserID, "name": identity.Name}
		h.fanout(roomID, domain.EventUserLeft, domain.BroadcastUserLeft, payload)
	}
}

// fanout delivers locally then relays to the other instances.
func (h *Handlers) fanout(roomID, event, broadcastType string, payload any) {
	h.hub.BroadcastToRoom(roomID, event, payload)
	if err := h.publisher.Publish(broadcastType, roomID, payload); err != nil {
		h.log.Error("Broadcast publish failed", "type", broadcastType, "room", roomID, "err", err)
	}
}

func (h *Handlers) announceParticipants(roomID string, participantIDs []string) {
	payload := map[string]any{"roomId": roomID, "participants": participantIDs}
	h.fanout(roomID, domain.EventParticipantsUpdate, domain.BroadcastParticipantsUpdate, payload)
}

func systemMessage(roomID, content string) pipeline.MessageResponse {
	return pipeline.MessageResponse{
		Message: domain.Message{
			ID:        uuid.New().String(),
			RoomID:    roomID,
			Type:      domain.MessageTypeSystem,
			Content:   content,
			Timestamp: time.Now().UTC(),
		},
	}
}

func errorBody(message string) map[string]any {
	return map[string]any{"message": message}
}
