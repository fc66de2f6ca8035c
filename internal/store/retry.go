package store

import (
	"context"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds exponential backoff for transient lock errors.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	return p
}

func (p RetryPolicy) backoff() retry.Backoff {
	p = p.withDefaults()
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), retry.NewExponential(p.BaseDelay))
}

// IsTransient reports whether err looks like SQLite lock contention.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}

// WithRetry calls fn until it succeeds, returns a non-transient error, or the
// policy's attempts are used up.
func WithRetry(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	_, err := RetryValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryValue is WithRetry for operations that produce a value.
func RetryValue[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			if IsTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		out = v
		return nil
	})
	return out, err
}
