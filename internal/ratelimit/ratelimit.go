// Package ratelimit holds the in-process admission controls: two-window
// sliding limiters, exponential login backoff and a non-blocking
// concurrency gate. Every store is bounded in size and expires idle keys.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/stylebook/internal/models"
)

// UnknownKey replaces blank keys so they share one bucket instead of bypassing limits.
const UnknownKey = "unknown"

// Limiter is the check-then-record contract shared by the in-memory and Redis windows.
// CheckAllowed never mutates state; RecordAttempt is a separate explicit step.
type Limiter interface {
	CheckAllowed(ctx context.Context, key string) error
	RecordAttempt(ctx context.Context, key string) error
	// Admit is CheckAllowed followed by RecordAttempt when allowed.
	Admit(ctx context.Context, key string) error
}

var (
	_ Limiter = (*WindowLimiter)(nil)
	_ Limiter = (*RedisWindowLimiter)(nil)
)

// LimitError is returned when a key is over its limit or locked out.
// It matches models.ErrRateLimitExceeded with errors.Is.
type LimitError struct {
	Limiter    string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s (retry after %s)", e.Limiter, models.ErrRateLimitExceeded, e.RetryAfter)
}

func (e *LimitError) Is(target error) bool {
	return target == models.ErrRateLimitExceeded
}

// Option configures a limiter.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now, used by tests to simulate elapsed time.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NormalizeKey trims whitespace and maps blank keys to UnknownKey.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return UnknownKey
	}
	return key
}

// NormalizeEmailKey lowercases after trimming so equivalent addresses share a bucket.
func NormalizeEmailKey(email string) string {
	return NormalizeKey(strings.ToLower(strings.TrimSpace(email)))
}
