package domain

import "strings"

// ChatMessageRequest is the payload of the chatMessage socket event.
// Clients historically sent the text either in content or msg, so the
// normalized accessor falls back to the secondary field.
type ChatMessageRequest struct {
	Room     string         `json:"room" validate:"required"`
	Type     string         `json:"type"`
	Content  string         `json:"content"`
	Msg      string         `json:"msg"`
	FileData map[string]any `json:"fileData"`
}

func (r ChatMessageRequest) NormalizedContent() string {
	if strings.TrimSpace(r.Content) != "" {
		return r.Content
	}
	return r.Msg
}

func (r ChatMessageRequest) ParsedContent() MessageContent {
	return NewMessageContent(r.NormalizedContent())
}

func (r ChatMessageRequest) MessageType() string {
	if r.Type == "" {
		return string(MessageTypeText)
	}
	return r.Type
}

// FileID extracts the pre-uploaded file reference, or "" if absent.
func (r ChatMessageRequest) FileID() string {
	if r.FileData == nil {
		return ""
	}
	if id, ok := r.FileData["_id"].(string); ok {
		return id
	}
	return ""
}

// MarkAsReadRequest is the payload of the markMessagesAsRead event.
type MarkAsReadRequest struct {
	RoomID     string   `json:"roomId"`
	MessageIDs []string `json:"messageIds" validate:"required,min=1"`
}

// MessageReactionRequest toggles a reaction on a message.
type MessageReactionRequest struct {
	MessageID string `json:"messageId" validate:"required"`
	Reaction  string `json:"reaction" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=add remove"`
}

// FetchMessagesRequest asks for a page of persisted room history.
type FetchMessagesRequest struct {
	RoomID string  `json:"roomId" validate:"required"`
	Before *string `json:"before"`
}
