package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"chat-relay/domain"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// recordingDispatcher captures local deliveries for assertions.
type recordingDispatcher struct {
	mu       sync.Mutex
	rooms    []roomDelivery
	unicasts []unicastDelivery
}

type roomDelivery struct {
	roomID  string
	event   string
	payload any
}

type unicastDelivery struct {
	userIDs []string
	event   string
	payload any
}

func (d *recordingDispatcher) BroadcastToRoom(roomID, event string, payload any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms = append(d.rooms, roomDelivery{roomID: roomID, event: event, payload: payload})
}

func (d *recordingDispatcher) SendToUsers(userIDs []string, event string, payload any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unicasts = append(d.unicasts, unicastDelivery{userIDs: userIDs, event: event, payload: payload})
}

func (d *recordingDispatcher) roomDeliveries() []roomDelivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]roomDelivery(nil), d.rooms...)
}

func (d *recordingDispatcher) unicastDeliveries() []unicastDelivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]unicastDelivery(nil), d.unicasts...)
}

func startBroadcaster(t *testing.T, bus Bus, dispatcher LocalDispatcher, serverID string) *Broadcaster {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	b := NewBroadcaster(bus, dispatcher, log, serverID, "chat.broadcast")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = b.Run(ctx) }()
	// Let the subscriber attach before publishing.
	time.Sleep(20 * time.Millisecond)
	return b
}

func TestBroadcaster_OriginDeduplication(t *testing.T) {
	req := require.New(t)
	bus := NewMemoryBus()
	dispatcherA := &recordingDispatcher{}
	dispatcherB := &recordingDispatcher{}

	a := startBroadcaster(t, bus, dispatcherA, "server-a")
	startBroadcaster(t, bus, dispatcherB, "server-b")

	req.NoError(a.Publish(domain.BroadcastMessage, "room-1", map[string]any{"content": "hello"}))

	req.Eventually(func() bool {
		return len(dispatcherB.roomDeliveries()) == 1
	}, time.Second, 10*time.Millisecond)

	// A must never see its own echo through the relay path.
	req.Empty(dispatcherA.roomDeliveries())

	delivery := dispatcherB.roomDeliveries()[0]
	req.Equal("room-1", delivery.roomID)
	req.Equal(domain.EventMessage, delivery.event)
	payload := delivery.payload.(map[string]any)
	req.Equal("hello", payload["content"])
}

func TestBroadcaster_RoomCreatedGoesToRoomIndex(t *testing.T) {
	req := require.New(t)
	bus := NewMemoryBus()
	dispatcherB := &recordingDispatcher{}

	a := startBroadcaster(t, bus, &recordingDispatcher{}, "server-a")
	startBroadcaster(t, bus, dispatcherB, "server-b")

	req.NoError(a.Publish(domain.BroadcastRoomCreated, "room-9", map[string]any{"name": "general"}))

	req.Eventually(func() bool {
		return len(dispatcherB.roomDeliveries()) == 1
	}, time.Second, 10*time.Millisecond)

	delivery := dispatcherB.roomDeliveries()[0]
	req.Equal(domain.RoomIndexChannel, delivery.roomID)
	req.Equal(domain.EventRoomCreated, delivery.event)
}

func TestBroadcaster_SelectiveUnicast(t *testing.T) {
	req := require.New(t)
	bus := NewMemoryBus()
	dispatcherB := &recordingDispatcher{}

	a := startBroadcaster(t, bus, &recordingDispatcher{}, "server-a")
	startBroadcaster(t, bus, dispatcherB, "server-b")

	readers := map[string]any{"userId": "u9", "messageIds": []string{"m1", "m2"}}
	req.NoError(a.PublishToUsers(domain.BroadcastMessagesRead, "room-1", []string{"u1", "u2"}, readers))

	req.Eventually(func() bool {
		return len(dispatcherB.unicastDeliveries()) == 1
	}, time.Second, 10*time.Millisecond)

	req.Empty(dispatcherB.roomDeliveries(), "selective unicast must not fan out to the room")
	delivery := dispatcherB.unicastDeliveries()[0]
	req.Equal([]string{"u1", "u2"}, delivery.userIDs)
	req.Equal(domain.EventMessagesRead, delivery.event)
	payload := delivery.payload.(map[string]any)
	req.Equal("u9", payload["userId"])
}

func TestBroadcaster_MalformedMessageDoesNotStopTheLoop(t *testing.T) {
	req := require.New(t)
	bus := NewMemoryBus()
	dispatcherB := &recordingDispatcher{}

	a := startBroadcaster(t, bus, &recordingDispatcher{}, "server-a")
	startBroadcaster(t, bus, dispatcherB, "server-b")

	req.NoError(bus.Publish("chat.broadcast", []byte("{not json")))
	req.NoError(a.Publish(domain.BroadcastMessage, "room-1", map[string]any{"content": "still alive"}))

	req.Eventually(func() bool {
		return len(dispatcherB.roomDeliveries()) == 1
	}, time.Second, 10*time.Millisecond)
}
