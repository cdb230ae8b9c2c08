// Package retry runs operations under an exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds retry strategy configuration.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first one.
	MaxAttempts int `yaml:"max_attempts"`
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration `yaml:"initial_delay"`
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration `yaml:"max_delay"`
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64 `yaml:"multiplier"`
}

// DefaultConfig returns default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// NotifyFunc is called after a failed attempt that will be retried.
type NotifyFunc func(err error, next time.Duration)

// Permanent marks err as not worth retrying. Do returns the wrapped error
// unchanged.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do executes fn until it succeeds, returns a permanent error, the attempts
// run out or ctx is done.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error), notify NotifyFunc) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		return zero, errors.New("retry: MaxAttempts must be greater than 0")
	}

	result, err := backoff.RetryNotifyWithData(fn, policy(ctx, cfg), backoff.Notify(notify))
	if err != nil {
		return zero, err
	}
	return result, nil
}

func policy(ctx context.Context, cfg Config) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialDelay > 0 {
		b.InitialInterval = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		b.MaxInterval = cfg.MaxDelay
	}
	if cfg.Multiplier >= 1 {
		b.Multiplier = cfg.Multiplier
	}
	// Attempts bound the loop, not elapsed time.
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.MaxAttempts-1)), ctx)
}
