package domain

import "time"

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Message is the record built by the ingestion pipeline. Durable storage
// is owned by the message repository and written asynchronously; local
// and cross-instance delivery never wait on it.
type Message struct {
	ID        string              `json:"id"`
	RoomID    string              `json:"roomId"`
	SenderID  string              `json:"senderId"`
	Type      MessageType         `json:"type"`
	Content   string              `json:"content"`
	FileID    string              `json:"fileId,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Mentions  []string            `json:"mentions,omitempty"`
	Metadata  map[string]any      `json:"metadata,omitempty"`
	Reactions map[string][]string `json:"reactions,omitempty"`
	Readers   []MessageReader     `json:"readers,omitempty"`
}

// MessageReader marks a user having read a message.
type MessageReader struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// HasReader reports whether userID already appears in the readers list.
func (m *Message) HasReader(userID string) bool {
	for _, r := range m.Readers {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// Room is the minimal room view the coordination layer needs: existence
// and membership. Full CRUD lives in the external REST service.
type Room struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CreatorID      string    `json:"creatorId"`
	ParticipantIDs []string  `json:"participantIds"`
	CreatedAt      time.Time `json:"createdAt"`
}

// HasParticipant reports whether userID belongs to the room.
func (r *Room) HasParticipant(userID string) bool {
	for _, id := range r.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// User is the sender-side projection used when building message responses.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// StoredFile describes a pre-uploaded file owned by a user. Upload and
// object storage are external; only the ownership check happens here.
type StoredFile struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
}
