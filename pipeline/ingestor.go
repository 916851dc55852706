//go:generate go run go.uber.org/mock/mockgen -source=ingestor.go -destination=../mocks/mock_pipeline.go -package=mocks
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/ai"
	"chat-relay/broadcast"
	"chat-relay/domain"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/presence"
	"chat-relay/ratelimit"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/session"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Client is the caller-facing side of a socket connection. The transport
// layer implements it.
type Client interface {
	Identity() (domain.ConnectedIdentity, bool)
	Emit(event string, payload any)
}

// MessageResponse is the fan-out payload for an accepted message.
type MessageResponse struct {
	domain.Message
	Sender domain.User `json:"sender"`
}

// Ingestor validates, rate-checks, filters and fans out inbound chat
// messages. Every inbound message terminates in exactly one outcome
// category. Local fan-out and the broadcaster publish happen
// synchronously; persistence, AI dispatch and the activity touch are
// offloaded to the task runner.
type Ingestor struct {
	log       *slog.Logger
	validate  *validator.Validate
	sessions  session.IService
	presence  presence.IRegistry
	limiter   ratelimit.ILimiter
	checker   *moderation.Checker
	users     repositories.IUserRepository
	files     repositories.IFileRepository
	messages  repositories.IMessageRepository
	local     broadcast.LocalDispatcher
	publisher broadcast.IPublisher
	tasks     *runtime.TaskRunner
	ai        *ai.Dispatcher
	outcomes  *observability.Outcomes

	rateLimitMax    int
	rateLimitWindow time.Duration
}

type Deps struct {
	Log       *slog.Logger
	Sessions  session.IService
	Presence  presence.IRegistry
	Limiter   ratelimit.ILimiter
	Checker   *moderation.Checker
	Users     repositories.IUserRepository
	Files     repositories.IFileRepository
	Messages  repositories.IMessageRepository
	Local     broadcast.LocalDispatcher
	Publisher broadcast.IPublisher
	Tasks     *runtime.TaskRunner
	Ai        *ai.Dispatcher
	Outcomes  *observability.Outcomes

	RateLimitMax    int
	RateLimitWindow time.Duration
}

func NewIngestor(deps Deps) *Ingestor {
	return &Ingestor{
		log:             deps.Log,
		validate:        validator.New(),
		sessions:        deps.Sessions,
		presence:        deps.Presence,
		limiter:         deps.Limiter,
		checker:         deps.Checker,
		users:           deps.Users,
		files:           deps.Files,
		messages:        deps.Messages,
		local:           deps.Local,
		publisher:       deps.Publisher,
		tasks:           deps.Tasks,
		ai:              deps.Ai,
		outcomes:        deps.Outcomes,
		rateLimitMax:    deps.RateLimitMax,
		rateLimitWindow: deps.RateLimitWindow,
	}
}

// HandleChatMessage runs the ordered ingestion steps for one inbound
// chatMessage event. Rejections are reported to the sender on the error
// event and never returned as Go errors.
func (i *Ingestor) HandleChatMessage(ctx context.Context, client Client, req *domain.ChatMessageRequest) {
	defer func() {
		if r := recover(); r != nil {
			i.outcomes.Record(observability.OutcomeException)
			i.log.Error("Panic while handling chat message", "panic", r)
			client.Emit(domain.EventError, errorPayload("EXCEPTION", "Internal error"))
		}
	}()

	// 1. Payload shape
	if req == nil || i.validate.Struct(req) != nil {
		i.outcomes.Record(observability.OutcomeNullData)
		client.Emit(domain.EventError, errorPayload("INVALID_DATA", "Message data is missing"))
		return
	}

	// 2. Bound identity, then session re-validation
	identity, ok := client.Identity()
	if !ok {
		i.outcomes.Record(observability.OutcomeSessionNull)
		client.Emit(domain.EventError, errorPayload(session.CodeInvalidSession, "No session bound to connection"))
		return
	}
	validation := i.sessions.ValidateSession(identity.UserID, identity.AuthSessionID)
	if !validation.Valid {
		i.outcomes.Record(observability.OutcomeSessionExpired)
		client.Emit(domain.EventError, errorPayload(validation.Code, validation.Message))
		return
	}

	// 3. Rate limiting on a per-user key
	limit := i.limiter.Check("chat:"+identity.UserID, i.rateLimitMax, i.rateLimitWindow)
	if !limit.Allowed {
		i.outcomes.Record(observability.OutcomeRateLimitExceeded)
		client.Emit(domain.EventError, map[string]any{
			"code":       "RATE_LIMIT_EXCEEDED",
			"message":    "Too many messages, slow down",
			"retryAfter": int64(limit.RetryAfter.Seconds()),
		})
		return
	}

	// 4. Sender and room resolution
	sender, err := i.users.GetUser(identity.UserID)
	if err != nil {
		i.outcomes.Record(observability.OutcomeUserNotFound)
		client.Emit(domain.EventError, errorPayload("USER_NOT_FOUND", "Unknown sender"))
		return
	}
	member, err := i.presence.IsInRoom(identity.UserID, req.Room)
	if err != nil || !member {
		i.outcomes.Record(observability.OutcomeRoomAccessDenied)
		client.Emit(domain.EventError, errorPayload("ROOM_ACCESS_DENIED", "Not a member of this room"))
		return
	}

	// 5. Content normalization and mention extraction
	content := req.ParsedContent()
	mentions := content.Mentions()

	// 6. Banned word filtering
	if i.checker.ContainsBannedWord(content.Trimmed) {
		i.outcomes.Record(observability.OutcomeBannedWord)
		client.Emit(domain.EventError, errorPayload("BANNED_WORD", "Message contains prohibited content"))
		return
	}

	// 7. Dispatch by declared type
	message := domain.Message{
		ID:        uuid.New().String(),
		RoomID:    req.Room,
		SenderID:  identity.UserID,
		Content:   content.Trimmed,
		Timestamp: time.Now().UTC(),
		Mentions:  mentions,
	}
	switch req.MessageType() {
	case string(domain.MessageTypeText):
		if content.IsEmpty() {
			// Empty text is a silent no-op, not an error.
			i.outcomes.Record(observability.OutcomeIgnored)
			return
		}
		message.Type = domain.MessageTypeText
	case string(domain.MessageTypeFile):
		file, err := i.files.GetOwnedFile(req.FileID(), identity.UserID)
		if err != nil {
			i.outcomes.Record(observability.OutcomeException)
			client.Emit(domain.EventError, errorPayload("FILE_ACCESS_DENIED", "File is missing or not yours"))
			return
		}
		message.Type = domain.MessageTypeFile
		message.FileID = file.ID
	default:
		i.outcomes.Record(observability.OutcomeException)
		client.Emit(domain.EventError, errorPayload("UNSUPPORTED_TYPE",
			fmt.Sprintf("Unknown message type : %s", req.Type)))
		return
	}

	// 8. Acceptance: synchronous delivery first, then async work
	i.accept(ctx, message, sender, content)
}

func (i *Ingestor) accept(ctx context.Context, message domain.Message,
	sender domain.User, content domain.MessageContent) {
	response := MessageResponse{Message: message, Sender: sender}

	i.local.BroadcastToRoom(message.RoomID, domain.EventMessage, response)
	if err := i.publisher.Publish(domain.BroadcastMessage, message.RoomID, response); err != nil {
		i.log.Error("Broadcast publish failed", "room", message.RoomID, "err", err)
	}

	_ = i.tasks.Submit("persist-message", func(ctx context.Context) error {
		return i.messages.StoreMessage(message)
	})

	if i.ai != nil {
		for _, persona := range message.Mentions {
			query := content.QueryWithoutMention(persona)
			_ = i.tasks.Submit("ai-dispatch", func(ctx context.Context) error {
				return i.ai.Dispatch(ctx, message.RoomID, persona, query)
			})
		}
	}

	_ = i.tasks.Submit("activity-touch", func(ctx context.Context) error {
		i.sessions.UpdateLastActivity(message.SenderID)
		return nil
	})

	switch message.Type {
	case domain.MessageTypeFile:
		i.outcomes.Record(observability.OutcomeSuccessFile)
	default:
		i.outcomes.Record(observability.OutcomeSuccessText)
	}
}

func errorPayload(code, message string) map[string]any {
	return map[string]any{"code": code, "message": message}
}
