// Package retry retries transient datasource failures with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0
	// OnlyRetryable stops at the first error IsRetryable rejects.
	OnlyRetryable bool
}

// DefaultConfig returns defaults for opening and pinging user databases:
// 3 retries starting at 100ms, capped at 5s, doubling, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		JitterFactor:  0.1,
		OnlyRetryable: true,
	}
}

func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// Do executes fn until it succeeds, the retries run out, or ctx is done.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that return a value, such as pool constructors.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var result T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		result, lastErr = r, err

		if cfg.OnlyRetryable && !IsRetryable(err) {
			return result, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-time.After(applyJitter(delay, cfg.JitterFactor)):
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}

	return result, lastErr
}

// retryablePatterns are driver error fragments that indicate a transient condition.
var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"too many clients",
	"deadlock",
	"network is unreachable",
	"server is starting up",
	"the database system is starting up",
	"bad connection",
}

// IsRetryable reports whether err looks transient. Authentication failures,
// unknown databases and SQL errors are permanent. Context cancellation is never
// retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
