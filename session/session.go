//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=../mocks/mock_session.go -package=mocks
package session

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chat-relay/store"

	"github.com/google/uuid"
)

const sessionKeyPrefix = "session:user:"

// Validation failure codes surfaced to transport code.
const (
	CodeInvalidParameters = "INVALID_PARAMETERS"
	CodeInvalidSession    = "INVALID_SESSION"
	CodeSessionExpired    = "SESSION_EXPIRED"
	CodeValidationError   = "VALIDATION_ERROR"
)

// Session is the single active session of a user. Creating a new one
// evicts any prior session for the same user.
type Session struct {
	UserID       string            `json:"userId"`
	SessionID    string            `json:"sessionId"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastActivity time.Time         `json:"lastActivity"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ExpiresAt    time.Time         `json:"expiresAt"`
}

type CreationResult struct {
	SessionID string
	ExpiresIn time.Duration
	Session   Session
}

type ValidationResult struct {
	Valid   bool
	Code    string
	Message string
	Session Session
}

func invalid(code, message string) ValidationResult {
	return ValidationResult{Code: code, Message: message}
}

type IService interface {
	CreateSession(userID string, metadata map[string]string) (CreationResult, error)
	ValidateSession(userID, sessionID string) ValidationResult
	UpdateLastActivity(userID string)
	RemoveSession(userID, sessionID string) error
	RemoveAllUserSessions(userID string) error
}

// Service enforces the single-active-session policy with TTL expiry and
// a short-lived validation-result cache to absorb high-frequency
// validation from the message path.
type Service struct {
	store                  store.Store
	log                    *slog.Logger
	sessionTTL             time.Duration
	activityUpdateInterval time.Duration
	cacheTTL               time.Duration

	// Read without locking; eventually consistent with the backing
	// store and invalidated imperatively on removal.
	validationCache sync.Map // "userID:sessionID" -> cachedValidation
}

type cachedValidation struct {
	result   ValidationResult
	cachedAt time.Time
}

func NewService(s store.Store, log *slog.Logger,
	sessionTTL, activityUpdateInterval, cacheTTL time.Duration) *Service {
	return &Service{
		store:                  s,
		log:                    log,
		sessionTTL:             sessionTTL,
		activityUpdateInterval: activityUpdateInterval,
		cacheTTL:               cacheTTL,
	}
}

func generateSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateSession unconditionally evicts any existing session for the user
// before storing the new one.
func (s *Service) CreateSession(userID string, metadata map[string]string) (CreationResult, error) {
	if err := s.RemoveAllUserSessions(userID); err != nil {
		return CreationResult{}, fmt.Errorf("evict previous sessions: %w", err)
	}

	now := time.Now()
	sess := Session{
		UserID:       userID,
		SessionID:    generateSessionID(),
		CreatedAt:    now,
		LastActivity: now,
		Metadata:     metadata,
		ExpiresAt:    now.Add(s.sessionTTL),
	}
	if err := s.store.Set(sessionKey(userID), sess, s.sessionTTL); err != nil {
		return CreationResult{}, fmt.Errorf("store session: %w", err)
	}
	return CreationResult{
		SessionID: sess.SessionID,
		ExpiresIn: s.sessionTTL,
		Session:   sess,
	}, nil
}

// ValidateSession checks the provided credentials against the stored
// session. Store failures are reported as a terminal VALIDATION_ERROR,
// never propagated to transport code.
func (s *Service) ValidateSession(userID, sessionID string) ValidationResult {
	if userID == "" || sessionID == "" {
		s.log.Warn("validateSession called with empty parameters",
			"has_user", userID != "", "has_session", sessionID != "")
		return invalid(CodeInvalidParameters, "invalid session parameters")
	}

	cacheKey := userID + ":" + sessionID
	if v, ok := s.validationCache.Load(cacheKey); ok {
		cached := v.(cachedValidation)
		if time.Since(cached.cachedAt) <= s.cacheTTL && cached.result.Valid {
			return cached.result
		}
	}

	var sess Session
	found, err := s.store.Get(sessionKey(userID), &sess)
	if err != nil {
		s.log.Error("session validation store error", "user_id", userID, "error", err)
		return invalid(CodeValidationError, "session validation failed")
	}
	if !found {
		s.log.Warn("no session found", "user_id", userID)
		return invalid(CodeInvalidSession, "session not found")
	}
	if sess.SessionID != sessionID {
		s.log.Warn("session id mismatch", "user_id", userID)
		return invalid(CodeInvalidSession, "session id mismatch")
	}

	now := time.Now()
	if now.Sub(sess.LastActivity) > s.sessionTTL {
		s.log.Warn("session timed out", "user_id", userID)
		if err := s.RemoveSession(userID, sessionID); err != nil {
			s.log.Error("expired session removal failed", "user_id", userID, "error", err)
		}
		s.validationCache.Delete(cacheKey)
		return invalid(CodeSessionExpired, "session expired")
	}

	// Throttled activity refresh: rewriting the record on every
	// validation would amplify store writes under load.
	if now.Sub(sess.LastActivity) > s.activityUpdateInterval {
		sess.LastActivity = now
		sess.ExpiresAt = now.Add(s.sessionTTL)
		if err := s.store.Set(sessionKey(userID), sess, s.sessionTTL); err != nil {
			s.log.Error("session activity refresh failed", "user_id", userID, "error", err)
			return invalid(CodeValidationError, "session validation failed")
		}
		s.log.Debug("session activity updated", "user_id", userID)
	}

	result := ValidationResult{Valid: true, Session: sess}
	s.validationCache.Store(cacheKey, cachedValidation{result: result, cachedAt: now})
	return result
}

// UpdateLastActivity is a best-effort touch; it silently no-ops when no
// session exists and never surfaces an error to the caller.
func (s *Service) UpdateLastActivity(userID string) {
	if userID == "" {
		return
	}
	var sess Session
	found, err := s.store.Get(sessionKey(userID), &sess)
	if err != nil {
		s.log.Error("activity touch load failed", "user_id", userID, "error", err)
		return
	}
	if !found {
		s.log.Debug("no session to touch", "user_id", userID)
		return
	}
	now := time.Now()
	sess.LastActivity = now
	sess.ExpiresAt = now.Add(s.sessionTTL)
	if err := s.store.Set(sessionKey(userID), sess, s.sessionTTL); err != nil {
		s.log.Error("activity touch save failed", "user_id", userID, "error", err)
	}
}

// RemoveSession deletes the stored session when sessionID matches it and
// purges the matching cache entry. An empty sessionID removes whatever
// session the user has and purges every cache entry for that user.
func (s *Service) RemoveSession(userID, sessionID string) error {
	if sessionID == "" {
		return s.RemoveAllUserSessions(userID)
	}
	s.validationCache.Delete(userID + ":" + sessionID)

	var sess Session
	found, err := s.store.Get(sessionKey(userID), &sess)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !found || sess.SessionID != sessionID {
		return nil
	}
	return s.store.Delete(sessionKey(userID))
}

func (s *Service) RemoveAllUserSessions(userID string) error {
	s.evictUserFromCache(userID)
	return s.store.Delete(sessionKey(userID))
}

func (s *Service) evictUserFromCache(userID string) {
	prefix := userID + ":"
	s.validationCache.Range(func(k, _ any) bool {
		if strings.HasPrefix(k.(string), prefix) {
			s.validationCache.Delete(k)
		}
		return true
	})
}

func sessionKey(userID string) string { return sessionKeyPrefix + userID }
