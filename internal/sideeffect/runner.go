// Package sideeffect runs best-effort work whose failure is logged and
// swallowed, never returned to the caller of the primary operation.
package sideeffect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"propertyhub/internal/metrics"
)

// DefaultTimeout bounds each effect when the runner is built with zero
const DefaultTimeout = 10 * time.Second

// Runner dispatches side effects in the background
type Runner struct {
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRunner creates a runner bounding every effect by timeout
func NewRunner(logger *zap.Logger, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{logger: logger.Named("sideeffect"), timeout: timeout}
}

// Go runs fn asynchronously. The context passed to fn keeps the caller's
// values but not its cancellation, and expires after the runner timeout.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Do(context.WithoutCancel(ctx), name, fn)
	}()
}

// Do runs fn synchronously under the same rules as Go and returns the
// outcome so fan-out callers can aggregate it. A panic in fn is returned as
// an error.
func (r *Runner) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- &panicError{value: p}
			}
		}()
		done <- fn(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	var pe *panicError
	switch {
	case err == nil:
		r.record(name, metrics.OutcomeOK, start, nil)
	case errors.As(err, &pe):
		r.record(name, metrics.OutcomePanic, start, err)
	case errors.Is(err, context.DeadlineExceeded):
		r.record(name, metrics.OutcomeTimeout, start, err)
	default:
		r.record(name, metrics.OutcomeFailed, start, err)
	}
	return err
}

type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// Wait blocks until every effect started with Go has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) record(name, outcome string, start time.Time, err error) {
	metrics.SideEffects.WithLabelValues(name, outcome).Inc()
	metrics.SideEffectDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		r.logger.Warn("side effect failed",
			zap.String("effect", name),
			zap.String("outcome", outcome),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	r.logger.Debug("side effect completed", zap.String("effect", name), zap.Duration("elapsed", time.Since(start)))
}
