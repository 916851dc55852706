package ratelimit

import (
	"log/slog"
	"os"
	"time"

	"chat-relay/store"

	"github.com/google/uuid"
)

const counterKeyPrefix = "ratelimit:"

// Counter is a fixed-window request counter. Its expiry is set when the
// window opens and is never extended by later increments.
type Counter struct {
	ClientID  string    `json:"clientId"`
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Window     time.Duration
	RetryAfter time.Duration
	ResetEpoch int64
}

type ILimiter interface {
	Check(clientKey string, max int, window time.Duration) Result
}

// Limiter counts requests per client against a fixed window. Counters
// are salted with a stable per-process instance id so distinct instances
// backed by per-instance stores never silently share a counter.
//
// On any store failure the limiter fails open: availability is
// prioritized over strict enforcement during infra outages.
type Limiter struct {
	store      store.Store
	log        *slog.Logger
	instanceID string
}

func NewLimiter(s store.Store, log *slog.Logger, instanceID string) *Limiter {
	if instanceID == "" {
		instanceID = defaultInstanceID()
	}
	return &Limiter{store: s, log: log, instanceID: instanceID}
}

func defaultInstanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown-" + uuid.NewString()[:8]
}

func (l *Limiter) Check(clientKey string, max int, window time.Duration) Result {
	actualKey := l.instanceID + ":" + clientKey
	now := time.Now()

	var counter Counter
	found, err := l.store.Get(counterKeyPrefix+actualKey, &counter)
	if err != nil {
		return l.failOpen(actualKey, max, window, now, err)
	}

	if found && counter.Count >= max {
		return Result{
			Allowed:    false,
			Limit:      max,
			Remaining:  0,
			Window:     window,
			RetryAfter: atLeastOneSecond(counter.ExpiresAt.Sub(now)),
			ResetEpoch: counter.ExpiresAt.Unix(),
		}
	}

	if !found {
		counter = Counter{ClientID: actualKey, Count: 1, ExpiresAt: now.Add(window)}
	} else {
		// Pure fixed window: the expiry set at first request stands.
		counter.Count++
	}
	if err := l.store.Set(counterKeyPrefix+actualKey, counter, counter.ExpiresAt.Sub(now)); err != nil {
		return l.failOpen(actualKey, max, window, now, err)
	}

	remaining := max - counter.Count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    true,
		Limit:      max,
		Remaining:  remaining,
		Window:     window,
		RetryAfter: atLeastOneSecond(counter.ExpiresAt.Sub(now)),
		ResetEpoch: counter.ExpiresAt.Unix(),
	}
}

func (l *Limiter) failOpen(key string, max int, window time.Duration, now time.Time, err error) Result {
	l.log.Error("rate limit check failed, failing open", "client", key, "error", err)
	return Result{
		Allowed:    true,
		Limit:      max,
		Remaining:  max,
		Window:     window,
		RetryAfter: window,
		ResetEpoch: now.Add(window).Unix(),
	}
}

func atLeastOneSecond(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	return d
}
