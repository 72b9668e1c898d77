package storage

import (
	"context"
	"log"
	"math"
	"time"

	bencherr "github.com/arkilian/membench/internal/errors"
)

// RetryPolicy bounds how transient connection failures are retried.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first (0 disables retries).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
	// BaseDelay is the backoff before the first retry; it doubles per attempt.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`
	// MaxDelay caps a single backoff.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   2 * time.Second,
	}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * p.BaseDelay
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// RetryingAdapter decorates an Adapter with bounded exponential backoff for
// errors classified retryable. Everything else, and the last retryable error
// once the budget is spent, propagates unchanged.
type RetryingAdapter struct {
	inner  Adapter
	policy RetryPolicy
	logger *log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps inner with policy. A nil logger uses log.Default().
func WithRetry(inner Adapter, policy RetryPolicy, logger *log.Logger) *RetryingAdapter {
	if logger == nil {
		logger = log.Default()
	}
	return &RetryingAdapter{
		inner:  inner,
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Unwrap returns the decorated adapter.
func (r *RetryingAdapter) Unwrap() Adapter {
	return r.inner
}

func (r *RetryingAdapter) Connect(ctx context.Context) error {
	return r.retryWithBackoff(ctx, "connect", func() error {
		return r.inner.Connect(ctx)
	})
}

func (r *RetryingAdapter) Close() error {
	return r.inner.Close()
}

func (r *RetryingAdapter) SetScalar(ctx context.Context, key, value string) error {
	return r.retryWithBackoff(ctx, key, func() error {
		return r.inner.SetScalar(ctx, key, value)
	})
}

func (r *RetryingAdapter) GetScalar(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := r.retryWithBackoff(ctx, key, func() error {
		var err error
		value, found, err = r.inner.GetScalar(ctx, key)
		return err
	})
	return value, found, err
}

func (r *RetryingAdapter) SetDocumentArray(ctx context.Context, key, path string, values []string) error {
	return r.retryWithBackoff(ctx, key, func() error {
		return r.inner.SetDocumentArray(ctx, key, path, values)
	})
}

func (r *RetryingAdapter) FindInDocumentArray(ctx context.Context, key, path, value string) (int64, error) {
	idx := NotFound
	err := r.retryWithBackoff(ctx, key, func() error {
		var err error
		idx, err = r.inner.FindInDocumentArray(ctx, key, path, value)
		return err
	})
	return idx, err
}

// retryWithBackoff executes the operation with exponential backoff retry.
func (r *RetryingAdapter) retryWithBackoff(ctx context.Context, what string, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil || !bencherr.IsRetryable(lastErr) {
			return lastErr
		}

		if attempt < r.policy.MaxRetries {
			backoff := r.policy.backoff(attempt)
			r.logger.Printf("storage: %s failed (attempt %d/%d), retrying in %v: %v",
				what, attempt+1, r.policy.MaxRetries+1, backoff, lastErr)
			if err := r.sleep(ctx, backoff); err != nil {
				return err
			}
		}
	}
	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
