package observability

import (
	"sync"
	"sync/atomic"
)

// Outcome categories recorded by the message ingestion pipeline. Every
// inbound chat message ends up in exactly one of these buckets.
const (
	OutcomeNullData          = "null_data"
	OutcomeSessionNull       = "session_null"
	OutcomeSessionExpired    = "session_expired"
	OutcomeRateLimitExceeded = "rate_limit_exceeded"
	OutcomeUserNotFound      = "user_not_found"
	OutcomeRoomAccessDenied  = "room_access_denied"
	OutcomeBannedWord        = "banned_word"
	OutcomeException         = "exception"
	OutcomeSuccessText       = "success_text"
	OutcomeSuccessFile       = "success_file"
	OutcomeIgnored           = "ignored"
)

// Outcomes is a concurrency-safe counter registry. Counters are created
// lazily on first Record so new categories need no registration step.
type Outcomes struct {
	counters sync.Map // category -> *uint64
}

func NewOutcomes() *Outcomes {
	return &Outcomes{}
}

func (o *Outcomes) Record(category string) {
	counter, ok := o.counters.Load(category)
	if !ok {
		counter, _ = o.counters.LoadOrStore(category, new(uint64))
	}
	atomic.AddUint64(counter.(*uint64), 1)
}

// Count returns the current value for a single category.
func (o *Outcomes) Count(category string) uint64 {
	counter, ok := o.counters.Load(category)
	if !ok {
		return 0
	}
	return atomic.LoadUint64(counter.(*uint64))
}

// Snapshot copies all counters into a plain map for logging.
func (o *Outcomes) Snapshot() map[string]uint64 {
	snapshot := make(map[string]uint64)
	o.counters.Range(func(key, value any) bool {
		snapshot[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})
	return snapshot
}
