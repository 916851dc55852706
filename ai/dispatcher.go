package ai

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"chat-relay/broadcast"
	"chat-relay/domain"

	"github.com/google/uuid"
)

// Dispatcher streams persona answers into a room. Events go out twice:
// synchronously to local sockets and through the broadcaster for the
// other instances.
type Dispatcher struct {
	streamer  Streamer
	local     broadcast.LocalDispatcher
	publisher broadcast.IPublisher
	log       *slog.Logger
}

func NewDispatcher(streamer Streamer, local broadcast.LocalDispatcher,
	publisher broadcast.IPublisher, log *slog.Logger) *Dispatcher {
	return &Dispatcher{streamer: streamer, local: local, publisher: publisher, log: log}
}

// Dispatch runs one full streaming session for a mentioned persona.
// A generation failure emits aiMessageError and nothing else.
func (d *Dispatcher) Dispatch(ctx context.Context, roomID, persona, query string) error {
	messageID := uuid.New().String()

	chunks, err := d.streamer.Stream(ctx, persona, query)
	if err != nil {
		d.emitError(roomID, messageID, persona, err)
		return err
	}

	d.emit(roomID, domain.BroadcastAiStart, domain.EventAiMessageStart, map[string]any{
		"messageId": messageID,
		"aiType":    persona,
		"timestamp": time.Now().UnixMilli(),
	})

	var fullContent strings.Builder
	inCodeBlock := false
	for {
		select {
		case <-ctx.Done():
			d.emitError(roomID, messageID, persona, ctx.Err())
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				d.emit(roomID, domain.BroadcastAiComplete, domain.EventAiMessageComplete, map[string]any{
					"messageId":  messageID,
					"aiType":     persona,
					"content":    fullContent.String(),
					"timestamp":  time.Now().UnixMilli(),
					"isComplete": true,
					"query":      query,
				})
				return nil
			}
			fullContent.WriteString(chunk.Content)
			// Fence markers toggle code block state across chunks.
			if strings.Count(chunk.Content, "```")%2 == 1 {
				inCodeBlock = !inCodeBlock
			}
			d.emit(roomID, domain.BroadcastAiChunk, domain.EventAiMessageChunk, map[string]any{
				"messageId":    messageID,
				"aiType":       persona,
				"currentChunk": chunk.Content,
				"fullContent":  fullContent.String(),
				"isCodeBlock":  inCodeBlock,
				"timestamp":    time.Now().UnixMilli(),
			})
		}
	}
}

func (d *Dispatcher) emit(roomID, broadcastType, event string, payload map[string]any) {
	d.local.BroadcastToRoom(roomID, event, payload)
	if err := d.publisher.Publish(broadcastType, roomID, payload); err != nil {
		d.log.Error("Failed to publish AI event", "type", broadcastType, "room", roomID, "err", err)
	}
}

func (d *Dispatcher) emitError(roomID, messageID, persona string, cause error) {
	d.log.Error("AI generation failed", "room", roomID, "persona", persona, "err", cause)
	d.emit(roomID, domain.BroadcastAiError, domain.EventAiMessageError, map[string]any{
		"messageId": messageID,
		"aiType":    persona,
		"error":     cause.Error(),
	})
}
