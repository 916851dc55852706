package domain

// Socket event names exchanged with connected clients.
// Inbound events are dispatched through the transport router; outbound
// events are pushed on the persistent connection as {event, data} frames.
const (
	// Client -> server
	EventChatMessage           = "chatMessage"
	EventJoinRoom              = "joinRoom"
	EventLeaveRoom             = "leaveRoom"
	EventFetchPreviousMessages = "fetchPreviousMessages"
	EventMarkMessagesAsRead    = "markMessagesAsRead"
	EventMessageReaction       = "messageReaction"

	// Server -> client
	EventMessage                = "message"
	EventError                  = "error"
	EventPreviousMessagesLoaded = "previousMessagesLoaded"
	EventJoinRoomSuccess        = "joinRoomSuccess"
	EventJoinRoomError          = "joinRoomError"
	EventParticipantsUpdate     = "participantsUpdate"
	EventRoomCreated            = "roomCreated"
	EventRoomUpdate             = "roomUpdate"
	EventMessagesRead           = "messagesRead"
	EventMessageReactionUpdate  = "messageReactionUpdate"
	EventUserLeft               = "userLeft"
	EventSessionEnded           = "session_ended"
	EventAiMessageStart         = "aiMessageStart"
	EventAiMessageChunk         = "aiMessageChunk"
	EventAiMessageComplete      = "aiMessageComplete"
	EventAiMessageError         = "aiMessageError"
)

// Cross-instance broadcast event types carried in an Envelope.
// Each one maps back to a socket event on the consuming side.
const (
	BroadcastMessage               = "MESSAGE"
	BroadcastAiStart               = "AI_START"
	BroadcastAiChunk               = "AI_CHUNK"
	BroadcastAiComplete            = "AI_COMPLETE"
	BroadcastAiError               = "AI_ERROR"
	BroadcastRoomJoin              = "ROOM_JOIN"
	BroadcastRoomLeave             = "ROOM_LEAVE"
	BroadcastUserLeft              = "USER_LEFT"
	BroadcastParticipantsUpdate    = "PARTICIPANTS_UPDATE"
	BroadcastRoomCreated           = "ROOM_CREATED"
	BroadcastRoomUpdate            = "ROOM_UPDATE"
	BroadcastMessageReactionUpdate = "MESSAGE_REACTION_UPDATE"
	BroadcastMessagesRead          = "MESSAGES_READ"
)

// RoomIndexChannel is the pseudo-room every client interested in the
// global room list joins. ROOM_CREATED broadcasts target it instead of a
// concrete room.
const RoomIndexChannel = "room-list"
