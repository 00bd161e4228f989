// Package background runs best-effort side effects. A task never reports back
// to the request that started it; its failure goes to the runner's callback.
package background

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FailureFunc receives the name and error of a failed task.
type FailureFunc func(name string, err error)

type Runner struct {
	wg        sync.WaitGroup
	timeout   time.Duration
	onFailure FailureFunc
}

// NewRunner returns a runner whose tasks get at most timeout to finish.
// onFailure is required.
func NewRunner(timeout time.Duration, onFailure FailureFunc) *Runner {
	if onFailure == nil {
		panic("background: onFailure callback is required")
	}
	return &Runner{timeout: timeout, onFailure: onFailure}
}

// LogFailures builds a callback that logs the failure and counts it.
func LogFailures(logger *slog.Logger, count func(errorType string)) FailureFunc {
	return func(name string, err error) {
		logger.Error("Best-effort task failed", slog.String("task", name), slog.Any("error", err))
		if count != nil {
			count(name)
		}
	}
}

// Go starts fn on its own goroutine. The task keeps the values of ctx but not
// its cancellation, so it outlives the request that scheduled it.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		if err := r.run(taskCtx, fn); err != nil {
			r.onFailure(name, err)
		}
	}()
}

func (r *Runner) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every started task has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
