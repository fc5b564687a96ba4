package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habit-sync/internal/metrics"
)

// Policy defaults.
const (
	DefaultRetries      = 3
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 10 * time.Second
)

// after is swapped in tests to observe backoff delays without sleeping.
var after = time.After

// Options controls one retried operation.
type Options struct {
	Name         string        // measurement name; defaults to "retry"
	Retries      int           // total attempts, including the first
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration // upper bound on any delay
	ShouldRetry  func(error) bool
	Metrics      *metrics.Registry
}

// RetryError is returned when the operation did not succeed. Attempts counts
// how many times it ran; Err is the last failure.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// Retryable is implemented by errors that know whether they are transient.
type Retryable interface {
	Retryable() bool
}

// IsTransient is the default ShouldRetry: true only for errors in the chain
// that report themselves retryable (no response, or a 5xx status).
func IsTransient(err error) bool {
	var r Retryable
	return errors.As(err, &r) && r.Retryable()
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "retry"
	}
	if o.Retries < 1 {
		o.Retries = DefaultRetries
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = IsTransient
	}
	return o
}

// Do executes op with retries and exponential backoff (base 2, no jitter).
//
// It stops early when ShouldRetry rejects the error. Every failure is
// returned as a *RetryError. Cancelling ctx ends a pending backoff sleep and
// returns a RetryError wrapping the context error.
func Do[T any](ctx context.Context, opts Options, op func(context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	if opts.Metrics != nil {
		defer opts.Metrics.Measure(opts.Name)()
	}

	var zero T
	delay := opts.InitialDelay

	for attempt := 1; ; attempt++ {
		if opts.Metrics != nil {
			opts.Metrics.Inc(metrics.RetryAttemptsTotal)
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if attempt >= opts.Retries {
			if opts.Metrics != nil {
				opts.Metrics.Inc(metrics.RetryExhaustedTotal)
			}
			return zero, &RetryError{Attempts: attempt, Err: err}
		}
		if !opts.ShouldRetry(err) {
			if opts.Metrics != nil {
				opts.Metrics.Inc(metrics.RetryAbortedTotal)
			}
			return zero, &RetryError{Attempts: attempt, Err: err}
		}

		select {
		case <-after(delay):
			delay *= 2
			if delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		case <-ctx.Done():
			return zero, &RetryError{Attempts: attempt, Err: ctx.Err()}
		}
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, opts Options, op func(context.Context) error) error {
	_, err := Do(ctx, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
