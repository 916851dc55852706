//go:generate go run go.uber.org/mock/mockgen -source=broadcaster.go -destination=../mocks/mock_broadcast.go -package=mocks
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"chat-relay/domain"
)

// Envelope is the wire format carried on the shared topic. Payload is a
// JSON string: one more serialization layer so that relaying instances
// never need to know the payload's concrete shape.
type Envelope struct {
	OriginServerID string `json:"originServerId"`
	EventType      string `json:"eventType"`
	RoomID         string `json:"roomId"`
	Payload        string `json:"payload"`
}

// targetedPayload wraps selective-unicast payloads: only locally
// connected sockets whose identity is in TargetUserIDs receive the event.
type targetedPayload struct {
	Data          json.RawMessage `json:"data"`
	TargetUserIDs []string        `json:"targetUserIds"`
}

// LocalDispatcher delivers relayed events to this instance's sockets.
// The transport hub implements it.
type LocalDispatcher interface {
	BroadcastToRoom(roomID, event string, payload any)
	SendToUsers(userIDs []string, event string, payload any)
}

type IPublisher interface {
	Publish(eventType, roomID string, payload any) error
	PublishToUsers(eventType, roomID string, targetUserIDs []string, payload any) error
}

// Broadcaster relays events between instances over one shared topic.
// Each instance publishes with its own server id; the subscriber loop
// discards own-origin envelopes, since local delivery already happened
// synchronously before publish. That discard is the sole de-duplication
// mechanism.
type Broadcaster struct {
	bus        Bus
	dispatcher LocalDispatcher
	log        *slog.Logger
	serverID   string
	topic      string
}

func NewBroadcaster(bus Bus, dispatcher LocalDispatcher, log *slog.Logger,
	serverID, topic string) *Broadcaster {
	return &Broadcaster{
		bus:        bus,
		dispatcher: dispatcher,
		log:        log,
		serverID:   serverID,
		topic:      topic,
	}
}

func (b *Broadcaster) ServerID() string { return b.serverID }

func (b *Broadcaster) Publish(eventType, roomID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serialize payload for %s: %w", eventType, err)
	}
	return b.publishEnvelope(eventType, roomID, string(data))
}

// PublishToUsers publishes a selective-unicast envelope. Consuming
// instances deliver it only to locally connected members of
// targetUserIDs instead of the whole room.
func (b *Broadcaster) PublishToUsers(eventType, roomID string, targetUserIDs []string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serialize payload for %s: %w", eventType, err)
	}
	wrapped, err := json.Marshal(targetedPayload{Data: data, TargetUserIDs: targetUserIDs})
	if err != nil {
		return fmt.Errorf("wrap targeted payload for %s: %w", eventType, err)
	}
	return b.publishEnvelope(eventType, roomID, string(wrapped))
}

func (b *Broadcaster) publishEnvelope(eventType, roomID, payload string) error {
	envelope := Envelope{
		OriginServerID: b.serverID,
		EventType:      eventType,
		RoomID:         roomID,
		Payload:        payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("serialize envelope: %w", err)
	}
	if err := b.bus.Publish(b.topic, data); err != nil {
		return fmt.Errorf("publish to %s: %w", b.topic, err)
	}
	b.log.Debug("published broadcast",
		"event_type", eventType, "room_id", roomID, "server_id", b.serverID)
	return nil
}

// Run subscribes to the shared topic and relays incoming envelopes to
// local sockets until the context is canceled. Registered once per
// instance under the supervisor.
func (b *Broadcaster) Run(ctx context.Context) error {
	unsubscribe, err := b.bus.Subscribe(b.topic, b.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.topic, err)
	}
	b.log.Info("broadcast subscriber started", "server_id", b.serverID, "topic", b.topic)

	<-ctx.Done()
	if err := unsubscribe(); err != nil {
		b.log.Warn("unsubscribe failed", "topic", b.topic, "error", err)
	}
	return nil
}

// handleMessage processes one envelope. Failures are logged per message
// and must never take down the subscriber loop.
func (b *Broadcaster) handleMessage(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic while relaying broadcast", "panic", r)
		}
	}()

	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		b.log.Error("failed to deserialize broadcast envelope", "error", err)
		return
	}
	if envelope.OriginServerID == b.serverID {
		// Own echo: local sockets were already served before publish.
		return
	}

	b.log.Debug("received broadcast",
		"event_type", envelope.EventType, "room_id", envelope.RoomID,
		"origin", envelope.OriginServerID)

	switch envelope.EventType {
	case domain.BroadcastRoomCreated:
		// Room creation notices go to the global room index channel,
		// not a concrete room.
		payload, err := decodePayload(envelope.Payload)
		if err != nil {
			b.log.Error("bad ROOM_CREATED payload", "error", err)
			return
		}
		b.dispatcher.BroadcastToRoom(domain.RoomIndexChannel, domain.EventRoomCreated, payload)

	case domain.BroadcastMessagesRead:
		var targeted targetedPayload
		if err := json.Unmarshal([]byte(envelope.Payload), &targeted); err != nil {
			b.log.Error("bad MESSAGES_READ payload", "error", err)
			return
		}
		payload, err := decodePayload(string(targeted.Data))
		if err != nil {
			b.log.Error("bad MESSAGES_READ data", "error", err)
			return
		}
		b.dispatcher.SendToUsers(targeted.TargetUserIDs, domain.EventMessagesRead, payload)

	default:
		payload, err := decodePayload(envelope.Payload)
		if err != nil {
			b.log.Error("bad broadcast payload",
				"event_type", envelope.EventType, "error", err)
			return
		}
		b.dispatcher.BroadcastToRoom(envelope.RoomID, b.mapToSocketEvent(envelope.EventType), payload)
	}
}

// mapToSocketEvent maps a broadcast event type onto the socket event
// delivered to clients. Join/leave notices ride the regular message
// event, matching what local fan-out emits.
func (b *Broadcaster) mapToSocketEvent(eventType string) string {
	switch eventType {
	case domain.BroadcastMessage, domain.BroadcastRoomJoin, domain.BroadcastRoomLeave:
		return domain.EventMessage
	case domain.BroadcastAiStart:
		return domain.EventAiMessageStart
	case domain.BroadcastAiChunk:
		return domain.EventAiMessageChunk
	case domain.BroadcastAiComplete:
		return domain.EventAiMessageComplete
	case domain.BroadcastAiError:
		return domain.EventAiMessageError
	case domain.BroadcastUserLeft:
		return domain.EventUserLeft
	case domain.BroadcastParticipantsUpdate:
		return domain.EventParticipantsUpdate
	case domain.BroadcastRoomUpdate:
		return domain.EventRoomUpdate
	case domain.BroadcastMessageReactionUpdate:
		return domain.EventMessageReactionUpdate
	default:
		b.log.Warn("unknown broadcast event type", "event_type", eventType)
		return eventType
	}
}

// decodePayload turns the serialized payload back into a generic value
// (object or list) for delivery to local sockets.
func decodePayload(payload string) (any, error) {
	if payload == "" {
		return map[string]any{}, nil
	}
	var value any
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return nil, err
	}
	return value, nil
}
