package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/valyala/fastrand"
)

const (
	// ErrRetryLimitReached is an error indicating that the retry limit has been reached.
	// Do wraps the error of the last attempt with it.
	ErrRetryLimitReached Error = "retry limit reached"

	// defaultMaxAttempts is used when WithMaxAttempts is not given or given zero.
	defaultMaxAttempts = 3
)

// Error represents package level errors.
type Error string

func (e Error) Error() string { return string(e) }

// RetryableError represents an error that can be retried. It encapsulates another error type
// and can be used to distinguish between errors that can be retried from those that cannot.
type RetryableError struct{ err error }

func (e *RetryableError) Unwrap() error { return e.err }

func (e *RetryableError) Error() string {
	if e.err == nil {
		return "retry: <nil>"
	}

	return "retry: " + e.err.Error()
}

// MarkRetryable marks error as retryable by wrapping it in RetryableError.
// Returns nil for nil error.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}

	return &RetryableError{err: err}
}

// IsRetryable reports whether err was marked as retryable.
func IsRetryable(err error) bool {
	var rErr *RetryableError
	return errors.As(err, &rErr)
}

// Backoff represents backoff logic.
type Backoff interface {
	// Next returns the timeout before next retry.
	Next(retry uint) time.Duration
}

// StaticBackoff represents a fixed duration as a backoff strategy.
type StaticBackoff time.Duration

func (b StaticBackoff) Next(uint) time.Duration { return time.Duration(b) }

// ExponentialBackoff implements Backoff interface where
// the backoff grows exponentially based on retry count.
type ExponentialBackoff struct {
	exponentialFactor  float64
	minBackoffInterval float64
	maxBackoffInterval float64
	maxJitterInterval  float64
}

// NewExponentialBackoff returns a pointer to a new instance of
// ExponentialBackoff struct, which implements Backoff interface.
func NewExponentialBackoff(f uint, minv, maxv, jitter time.Duration) *ExponentialBackoff {
	backoff := ExponentialBackoff{
		exponentialFactor:  float64(f),
		minBackoffInterval: float64(minv / time.Millisecond),
		maxBackoffInterval: float64(maxv / time.Millisecond),
		maxJitterInterval:  float64(jitter / time.Millisecond),
	}

	return &backoff
}

func (b *ExponentialBackoff) Next(retry uint) time.Duration {
	if retry == 0 {
		return 0
	}

	if b.minBackoffInterval >= b.maxBackoffInterval {
		return time.Duration(b.maxBackoffInterval) * time.Millisecond
	}

	mult := math.Pow(b.exponentialFactor, float64(retry))
	backoff := math.Min(b.minBackoffInterval*mult, b.maxBackoffInterval)

	return time.Duration(backoff+jitter(b.maxJitterInterval)) * time.Millisecond
}

// ConstantBackoff implements Backoff interface where the backoff is constant.
type ConstantBackoff struct {
	minBackoffInterval float64
	maxBackoffInterval float64
	maxJitterInterval  float64
}

// NewConstantBackoff returns a pointer to a new instance of
// ConstantBackoff struct, which implements Backoff interface.
func NewConstantBackoff(minv, maxv, jitter time.Duration) *ConstantBackoff {
	backoff := ConstantBackoff{
		minBackoffInterval: float64(minv / time.Millisecond),
		maxBackoffInterval: float64(maxv / time.Millisecond),
		maxJitterInterval:  float64(jitter / time.Millisecond),
	}

	return &backoff
}

func (b *ConstantBackoff) Next(retry uint) time.Duration {
	if retry == 0 {
		return 0
	}

	backoff := math.Min(b.minBackoffInterval, b.maxBackoffInterval)

	return time.Duration(backoff+jitter(b.maxJitterInterval)) * time.Millisecond
}

// LinearBackoff implements Backoff where the backoff grows linearly based on retry count.
type LinearBackoff struct {
	minBackoffInterval float64
	maxBackoffInterval float64
	maxJitterInterval  float64
}

// NewLinearBackoff returns a pointer to a new instance of
// LinearBackoff struct, which implements Backoff interface.
func NewLinearBackoff(minv, maxv, jitter time.Duration) *LinearBackoff {
	backoff := LinearBackoff{
		minBackoffInterval: float64(minv / time.Millisecond),
		maxBackoffInterval: float64(maxv / time.Millisecond),
		maxJitterInterval:  float64(jitter / time.Millisecond),
	}

	return &backoff
}

func (b *LinearBackoff) Next(retry uint) time.Duration {
	if retry == 0 {
		return 0
	}

	backoff := math.Min(b.minBackoffInterval*float64(retry), b.maxBackoffInterval)

	return time.Duration(backoff+jitter(b.maxJitterInterval)) * time.Millisecond
}

// jitter returns a random amount of milliseconds in [0, maxv).
func jitter(maxv float64) float64 {
	if maxv < 1 {
		return 0
	}

	return float64(fastrand.Uint32n(uint32(maxv)))
}

// NotifyFunc is called after a failed attempt which is going to be retried.
// The attempt is 1-based, next is the delay before the following attempt.
type NotifyFunc func(attempt uint, err error, next time.Duration)

// WithMaxAttempts sets the maximum number of attempts, the first one included.
// Zero value keeps the default of 3 attempts.
func WithMaxAttempts(maxAttempts uint) Option {
	return func(o *Options) {
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
	}
}

// WithBackoff returns an Option function that sets the backoff strategy for retry logic.
// The Backoff implementation determines the timeout before the next retry based on the number of retries.
func WithBackoff(backoff Backoff) Option {
	return func(o *Options) {
		if backoff != nil {
			o.backoff = backoff
		}
	}
}

// WithLogger specifies the logger to be used for logging within the retry logic.
func WithLogger(logger *slog.Logger) Option { return func(o *Options) { o.logger = logger } }

// WithNotify sets the function which is called before each retry.
func WithNotify(fn NotifyFunc) Option { return func(o *Options) { o.notify = fn } }

// Options represents the configuration options for retry logic.
type Options struct {
	logger      *slog.Logger
	notify      NotifyFunc
	maxAttempts uint
	backoff     Backoff
}

// MaxAttempts returns the max number of attempts.
func (o *Options) MaxAttempts() uint { return o.maxAttempts }

// Backoff returns the current implementation of Backoff interface.
func (o *Options) Backoff() Backoff { return o.backoff }

// Option is a function type that modifies the Options struct.
type Option func(*Options)

// NewOptions applies given options on top of the defaults.
func NewOptions(options ...Option) Options {
	o := Options{
		maxAttempts: defaultMaxAttempts,
		backoff:     StaticBackoff(0),
	}

	for _, option := range options {
		option(&o)
	}

	return o
}

// Do calls fn sequentially until it succeeds or the attempts limit is reached.
// Only errors marked with MarkRetryable are retried, any other error is returned
// as is right away. When the limit is reached, Do returns ErrRetryLimitReached
// joined with the error of the last attempt, so both can be matched with errors.Is
// and errors.As. If the context is canceled, Do returns the context error.
func Do(ctx context.Context, fn func(ctx context.Context) error, options ...Option) error {
	o := NewOptions(options...)

	var lastErr error

	for attempt := uint(1); attempt <= o.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return err
		}

		lastErr = err

		if attempt == o.maxAttempts {
			break
		}

		backoff := o.backoff.Next(attempt)

		if o.notify != nil {
			o.notify(attempt, err, backoff)
		}

		if o.logger != nil {
			o.logger.Debug("Retrying after failed attempt",
				slog.Uint64("attempt", uint64(attempt)),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()),
			)
		}

		if backoff <= 0 {
			continue
		}

		timer := time.NewTimer(backoff)

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryLimitReached, o.maxAttempts, lastErr)
}
