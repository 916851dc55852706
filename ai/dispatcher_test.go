package ai

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"chat-relay/domain"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

type fakeStreamer struct {
	chunks []string
	err    error
}

func (f *fakeStreamer) Stream(ctx context.Context, persona, query string) (<-chan Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan Chunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- Chunk{Content: c}
	}
	close(out)
	return out, nil
}

type captured struct {
	event   string
	payload map[string]any
}

type fakeEmitters struct {
	mu        sync.Mutex
	local     []captured
	published []captured
}

func (f *fakeEmitters) BroadcastToRoom(roomID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.local = append(f.local, captured{event: event, payload: payload.(map[string]any)})
}

func (f *fakeEmitters) SendToUsers(userIDs []string, event string, payload any) {}

func (f *fakeEmitters) Publish(eventType, roomID string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, captured{event: eventType, payload: payload.(map[string]any)})
	return nil
}

func (f *fakeEmitters) PublishToUsers(eventType, roomID string, targetUserIDs []string, payload any) error {
	return nil
}

func TestDispatcher_FullStreamingSession(t *testing.T) {
	req := require.New(t)
	emitters := &fakeEmitters{}
	streamer := &fakeStreamer{chunks: []string{"Hello", " world"}}
	d := NewDispatcher(streamer, emitters, emitters, slog.Default())

	err := d.Dispatch(context.Background(), "room-1", "wayneAI", "what is Go?")
	req.NoError(err)

	events := lo.Map(emitters.local, func(c captured, _ int) string { return c.event })
	req.Equal([]string{
		domain.EventAiMessageStart,
		domain.EventAiMessageChunk,
		domain.EventAiMessageChunk,
		domain.EventAiMessageComplete,
	}, events)

	complete := emitters.local[3].payload
	req.Equal("Hello world", complete["content"])
	req.Equal("wayneAI", complete["aiType"])
	req.Equal(true, complete["isComplete"])
	req.Equal("what is Go?", complete["query"])

	// Chunks accumulate the running content.
	req.Equal("Hello", emitters.local[1].payload["fullContent"])
	req.Equal("Hello world", emitters.local[2].payload["fullContent"])

	// Every local event also went through the broadcaster.
	req.Len(emitters.published, 4)
	req.Equal(domain.BroadcastAiStart, emitters.published[0].event)
	req.Equal(domain.BroadcastAiComplete, emitters.published[3].event)
}

func TestDispatcher_CodeBlockStateSpansChunks(t *testing.T) {
	req := require.New(t)
	emitters := &fakeEmitters{}
	streamer := &fakeStreamer{chunks: []string{"```go\nfunc main()", " {}\n```", "done"}}
	d := NewDispatcher(streamer, emitters, emitters, slog.Default())

	req.NoError(d.Dispatch(context.Background(), "room-1", "consultingAI", "show me"))

	req.Equal(true, emitters.local[1].payload["isCodeBlock"])
	req.Equal(false, emitters.local[2].payload["isCodeBlock"])
	req.Equal(false, emitters.local[3].payload["isCodeBlock"])
}

func TestDispatcher_GenerationFailureEmitsErrorOnly(t *testing.T) {
	req := require.New(t)
	emitters := &fakeEmitters{}
	streamer := &fakeStreamer{err: errors.New("backend unreachable")}
	d := NewDispatcher(streamer, emitters, emitters, slog.Default())

	err := d.Dispatch(context.Background(), "room-1", "wayneAI", "hello")
	req.Error(err)

	req.Len(emitters.local, 1)
	req.Equal(domain.EventAiMessageError, emitters.local[0].event)
	req.Equal("backend unreachable", emitters.local[0].payload["error"])
}
