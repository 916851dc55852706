package runtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"chat-relay/errors"
)

// Task is a unit of background work, typically message persistence or an
// AI streaming session. Tasks run at most once and are lost on overflow.
type Task func(ctx context.Context) error

type namedTask struct {
	name string
	task Task
}

// TaskRunner executes submitted tasks on a fixed pool of goroutines fed
// by a bounded queue. Submit never blocks the caller.
type TaskRunner struct {
	log        *slog.Logger
	tasks      chan namedTask
	numWorkers int
	dropped    uint64
}

func NewTaskRunner(log *slog.Logger, queueSize, numWorkers int) *TaskRunner {
	return &TaskRunner{
		log:        log,
		tasks:      make(chan namedTask, queueSize),
		numWorkers: numWorkers,
	}
}

// Submit enqueues a task without blocking. When the queue is full the
// task is dropped and counted, and the caller gets ErrQueueFull.
func (r *TaskRunner) Submit(name string, task Task) error {
	select {
	case r.tasks <- namedTask{name: name, task: task}:
		return nil
	default:
		atomic.AddUint64(&r.dropped, 1)
		r.log.Warn("Task queue full, dropping task", "name", name)
		return errors.ErrQueueFull
	}
}

// Dropped reports how many tasks were rejected since startup.
func (r *TaskRunner) Dropped() uint64 {
	return atomic.LoadUint64(&r.dropped)
}

func (r *TaskRunner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < r.numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx)
		}()
	}
	wg.Wait()
	return nil
}

func (r *TaskRunner) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.log.Debug("Context done, stopping task worker")
			return
		case item := <-r.tasks:
			r.execute(ctx, item)
		}
	}
}

// execute isolates a single task so a panic cannot take the worker down.
func (r *TaskRunner) execute(ctx context.Context, item namedTask) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Task panicked", "name", item.name, "panic", rec)
		}
	}()
	if err := item.task(ctx); err != nil {
		r.log.Error("Task failed", "name", item.name, "err", err)
	}
}
