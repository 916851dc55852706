package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-relay/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSupervisor_RestartOnPanic(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	workerMock := mocks.NewMockWorker(ctrl)

	calls := 0
	workerMock.EXPECT().
		Run(gomock.Any()).
		DoAndReturn(func(ctx context.Context) error {
			calls++
			panic("boom")
		}).
		AnyTimes()

	sup := NewSupervisor(log)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	go sup.Add(workerMock).Run(ctx)

	// Waiting for panics and restarts
	time.Sleep(900 * time.Millisecond)

	req.GreaterOrEqual(calls, 2)
}

func TestSupervisor_StopOnSuccess(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	workerMock := mocks.NewMockWorker(ctrl)

	// Given a worker running only once
	workerMock.EXPECT().
		Run(gomock.Any()).
		Return(nil).
		Times(1)

	sup := NewSupervisor(log)

	// Given a channel to notify when Run() terminated
	done := make(chan struct{})

	go func() {
		sup.Add(workerMock).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
		// Then supervisor detected a success, returned nil and stopped
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have stopped after worker success")
	}
}

func TestTaskRunner_ExecutesSubmittedTasks(t *testing.T) {
	req := require.New(t)
	runner := NewTaskRunner(slog.Default(), 8, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = runner.Run(ctx) }()

	done := make(chan string, 2)
	req.NoError(runner.Submit("persist", func(ctx context.Context) error {
		done <- "persist"
		return nil
	}))
	req.NoError(runner.Submit("notify", func(ctx context.Context) error {
		done <- "notify"
		return nil
	}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			req.Fail("Task was not executed")
		}
	}
	req.Zero(runner.Dropped())
}

func TestTaskRunner_DropsWhenQueueFull(t *testing.T) {
	req := require.New(t)
	// No worker consuming: the queue fills up immediately.
	runner := NewTaskRunner(slog.Default(), 1, 1)

	noop := func(ctx context.Context) error { return nil }
	req.NoError(runner.Submit("first", noop))
	err := runner.Submit("second", noop)
	req.Error(err)
	req.Equal(uint64(1), runner.Dropped())
}

func TestTaskRunner_SurvivesPanickingTask(t *testing.T) {
	req := require.New(t)
	runner := NewTaskRunner(slog.Default(), 4, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = runner.Run(ctx) }()

	req.NoError(runner.Submit("explosive", func(ctx context.Context) error {
		panic("boom")
	}))

	done := make(chan struct{})
	req.NoError(runner.Submit("survivor", func(ctx context.Context) error {
		close(done)
		return nil
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Worker did not survive the panicking task")
	}
}
