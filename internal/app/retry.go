package app

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/neomorfeo/adoptiq/internal/domain"
)

// RetryPolicy bounds the approve loop.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy makes three attempts with short randomized pauses.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     250 * time.Millisecond,
	}
}

func (p RetryPolicy) attempts() uint {
	if p.MaxAttempts < 1 {
		return 1
	}
	return uint(p.MaxAttempts)
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// retryable reports errors that a fresh read may resolve: lost version races
// and transient storage failures.
func retryable(err error) bool {
	return errors.Is(err, domain.ErrVersionConflict) || domain.IsTransient(err)
}
