// Package retry runs fallible provider operations with a fixed attempt budget
// and a constant delay between attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/systmms/secretchain/internal/logging"
)

// Observer is notified after every failed attempt
type Observer func(op string, attempt int, err error)

// Executor retries operations. The zero value is not usable; use New.
type Executor struct {
	maxRetries uint
	delay      time.Duration
	logger     *logging.Logger
	observer   Observer
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the logger used for per-attempt debug output
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithObserver registers a callback for failed attempts
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observer = o
	}
}

// New creates an executor running at most maxRetries attempts, sleeping delay
// between them. A maxRetries of 0 is treated as a single attempt.
func New(maxRetries uint, delay time.Duration, opts ...Option) *Executor {
	if maxRetries == 0 {
		maxRetries = 1
	}
	if delay < 0 {
		delay = 0
	}
	e := &Executor{
		maxRetries: maxRetries,
		delay:      delay,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxRetries is the total attempt budget
func (e *Executor) MaxRetries() uint {
	return e.maxRetries
}

// Delay is the fixed wait between attempts
func (e *Executor) Delay() time.Duration {
	return e.delay
}

// Permanent marks err as final: no further attempts are made and err is
// returned unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Run executes fn until it succeeds, returns a Permanent error, the budget is
// spent, or ctx ends. It returns the last error observed.
func (e *Executor) Run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, e, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do is Run for operations that produce a value.
func Do[T any](ctx context.Context, e *Executor, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		value, err := fn(ctx)
		if err != nil && e.observer != nil {
			e.observer(op, attempt, err)
		}
		return value, err
	}

	notify := func(err error, wait time.Duration) {
		e.logger.Debug("%s attempt %d/%d failed, retrying in %s: %v", op, attempt, e.maxRetries, wait, err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.delay), uint64(e.maxRetries-1)),
		ctx,
	)

	return backoff.RetryNotifyWithData(operation, policy, notify)
}
