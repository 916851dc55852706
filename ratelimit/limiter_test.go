package ratelimit

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"chat-relay/mocks"
	"chat-relay/store"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newLimiter(s store.Store) *Limiter {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewLimiter(s, log, "instance-a")
}

func TestLimiter_AllowsUpToMax(t *testing.T) {
	req := require.New(t)
	l := newLimiter(store.NewMemory())

	max := 5
	for i := 1; i <= max; i++ {
		result := l.Check("ip:1.2.3.4", max, time.Minute)
		req.True(result.Allowed, "request %d within the window must pass", i)
		req.Equal(max-i, result.Remaining)
	}

	rejected := l.Check("ip:1.2.3.4", max, time.Minute)
	req.False(rejected.Allowed)
	req.Zero(rejected.Remaining)
	req.Positive(rejected.RetryAfter)
}

func TestLimiter_ResetEpochFixedAtFirstRequest(t *testing.T) {
	req := require.New(t)
	l := newLimiter(store.NewMemory())

	first := l.Check("u1", 3, time.Minute)
	second := l.Check("u1", 3, time.Minute)
	third := l.Check("u1", 3, time.Minute)
	rejected := l.Check("u1", 3, time.Minute)

	// The window expiry never moves after the first request.
	req.Equal(first.ResetEpoch, second.ResetEpoch)
	req.Equal(first.ResetEpoch, third.ResetEpoch)
	req.Equal(first.ResetEpoch, rejected.ResetEpoch)
}

func TestLimiter_CountersAreSaltedPerInstance(t *testing.T) {
	req := require.New(t)
	mem := store.NewMemory()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	a := NewLimiter(mem, log, "instance-a")
	b := NewLimiter(mem, log, "instance-b")

	req.True(a.Check("u1", 1, time.Minute).Allowed)
	// instance-b shares the store but not the counter.
	req.True(b.Check("u1", 1, time.Minute).Allowed)
	req.False(a.Check("u1", 1, time.Minute).Allowed)
}

func TestLimiter_FailsOpenOnStoreReadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)

	mockStore := mocks.NewMockStore(ctrl)
	l := NewLimiter(mockStore, logs.GetLoggerFromLevel(slog.LevelDebug), "instance-a")

	mockStore.EXPECT().
		Get("ratelimit:instance-a:ip:1.2.3.4", gomock.Any()).
		Return(false, fmt.Errorf("store unreachable")).
		Times(1)

	result := l.Check("ip:1.2.3.4", 5, time.Minute)
	req.True(result.Allowed)
	req.Equal(5, result.Remaining)
}

func TestLimiter_FailsOpenOnStoreWriteError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)

	mockStore := mocks.NewMockStore(ctrl)
	l := NewLimiter(mockStore, logs.GetLoggerFromLevel(slog.LevelDebug), "instance-a")

	mockStore.EXPECT().Get(gomock.Any(), gomock.Any()).Return(false, nil)
	mockStore.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("store unreachable"))

	result := l.Check("u1", 10, time.Minute)
	req.True(result.Allowed)
	req.Equal(10, result.Remaining)
}
