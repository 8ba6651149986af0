// Package retry runs fallible operations with bounded attempts and
// exponential backoff between them.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/contentforge/api/internal/logger"
)

// Config controls how an operation is retried.
type Config struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64

	// Retryable reports whether a failure may be retried. When nil only
	// errors marked with Transient are retried.
	Retryable func(error) bool
}

var (
	// DefaultConfig suits quick internal operations.
	DefaultConfig = Config{
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2,
	}

	// LLMConfig suits calls to a language model provider.
	LLMConfig = Config{
		MaxAttempts:     3,
		InitialDelay:    2 * time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2,
	}

	// NetworkConfig suits plain network round trips.
	NetworkConfig = Config{
		MaxAttempts:     5,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2,
	}
)

// ErrTransient marks failures that are worth another attempt.
var ErrTransient = errors.New("transient failure")

// Transient marks err as retryable under the default predicate.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrTransient)
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// On returns a predicate that allows retries only for errors matching one of
// the given targets (errors.Is).
func On(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// ExhaustedError is returned once an operation will not be attempted again.
type ExhaustedError struct {
	Label    string
	Attempts int
	Last     error
	// Permanent is set when the last failure was not retryable.
	Permanent bool
}

func (e *ExhaustedError) Error() string {
	if e.Permanent {
		return fmt.Sprintf("%s failed with a non-retryable error after %d attempt(s): %v", e.Label, e.Attempts, e.Last)
	}
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Label, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor applies a Config to operations.
type Executor struct {
	cfg   Config
	log   *zap.SugaredLogger
	sleep SleepFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Executor) { e.log = l }
}

// WithSleep replaces the backoff sleep, mostly for tests.
func WithSleep(s SleepFunc) Option {
	return func(e *Executor) { e.sleep = s }
}

// NewExecutor creates an Executor for cfg.
func NewExecutor(cfg Config, opts ...Option) *Executor {
	e := &Executor{
		cfg:   cfg,
		log:   logger.ComponentLogger("retry"),
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run invokes op until it succeeds, fails permanently or runs out of
// attempts. Any returned error is an *ExhaustedError, or the context error
// when ctx ends during a backoff sleep.
func (e *Executor) Run(ctx context.Context, label string, op func(ctx context.Context) error) error {
	maxAttempts := e.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := e.cfg.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	log := logger.FromContext(ctx, e.log)

	var last error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		last = err

		if !retryable(err) {
			log.Warnw("operation failed with non-retryable error",
				logger.FieldOperation, label,
				logger.FieldAttempt, attempt+1,
				logger.FieldError, err,
			)
			return &ExhaustedError{Label: label, Attempts: attempt + 1, Last: err, Permanent: true}
		}

		if attempt == maxAttempts-1 {
			break
		}

		delay := Delay(attempt, e.cfg)
		log.Warnw("operation failed, retrying",
			logger.FieldOperation, label,
			logger.FieldAttempt, attempt+1,
			logger.FieldAttempts, maxAttempts,
			logger.FieldDelay, delay,
			logger.FieldError, err,
		)
		if err := e.sleep(ctx, delay); err != nil {
			return errors.Wrapf(err, "%s: backoff interrupted after attempt %d", label, attempt+1)
		}
	}

	log.Errorw("operation failed after all attempts",
		logger.FieldOperation, label,
		logger.FieldAttempts, maxAttempts,
		logger.FieldError, last,
	)
	return &ExhaustedError{Label: label, Attempts: maxAttempts, Last: last}
}

// Do is Run for operations that produce a value.
func Do[T any](ctx context.Context, e *Executor, label string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Run(ctx, label, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
