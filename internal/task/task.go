// Package task runs blocking work on a bounded pool of goroutines and hands
// the result back through a future.
package task

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of tasks running at once.
type Pool struct {
	sem    *semaphore.Weighted
	size   int
	logger *slog.Logger
}

// NewPool returns a pool running at most size tasks concurrently. A size
// below one uses GOMAXPROCS.
func NewPool(size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
		logger: logger,
	}
}

var defaultPool = sync.OnceValue(func() *Pool { return NewPool(0, nil) })

// Default returns the process-wide pool.
func Default() *Pool {
	return defaultPool()
}

// Size returns the concurrency limit.
func (p *Pool) Size() int {
	return p.size
}

// Task is the pending result of work submitted with Run.
type Task[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Run schedules fn on p. Cancellation of ctx is observed before fn starts and
// again before its result is delivered; fn itself is never interrupted.
// cleanup, if not nil, runs exactly once after the task settles.
func Run[T any](ctx context.Context, p *Pool, name string, fn func(context.Context) (T, error), cleanup func()) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}

	go func() {
		defer close(t.done)
		if cleanup != nil {
			defer cleanup()
		}

		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.logger.Debug("task cancelled before start", "task", name, "error", err)
			t.err = err
			return
		}
		defer p.sem.Release(1)

		if err := ctx.Err(); err != nil {
			t.err = err
			return
		}

		p.logger.Debug("task started", "task", name)
		value, err := fn(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			p.logger.Debug("task result dropped", "task", name, "error", ctxErr)
			t.err = ctxErr
			return
		}
		t.value, t.err = value, err
	}()

	return t
}

// Done is closed once the task has settled.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task settles or ctx is done.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
