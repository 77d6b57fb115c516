package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/BradenHooton/stylebook/internal/metrics"
)

const (
	// DefaultMaxBackoff caps the lockout regardless of failure count.
	DefaultMaxBackoff = 300 * time.Second
	// maxBackoffExponent caps the exponent so 1<<n cannot overflow.
	maxBackoffExponent = 8
	// backoffStaleAfter evicts keys with no failure for this long.
	backoffStaleAfter = 24 * time.Hour
)

// BackoffConfig configures a BackoffLimiter.
type BackoffConfig struct {
	Name       string
	MaxBackoff time.Duration
	MaxKeys    int
}

// backoffState is the per-key failure record. A successful login deletes it.
type backoffState struct {
	failureCount  int
	blockedUntil  time.Time
	lastFailureAt time.Time
}

// BackoffLimiter locks a login IP and email out for an exponentially growing
// period after each failure: min(2^min(n,8) seconds, MaxBackoff).
// IP and email are tracked in separate bounded stores, and a request is
// rejected while either is locked.
type BackoffLimiter struct {
	cfg BackoffConfig
	now func() time.Time

	mu     sync.Mutex // guards read-modify-write of both stores
	byIP   *expirable.LRU[string, backoffState]
	byMail *expirable.LRU[string, backoffState]
}

// NewBackoffLimiter creates a login backoff limiter.
func NewBackoffLimiter(cfg BackoffConfig, opts ...Option) *BackoffLimiter {
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	if cfg.Name == "" {
		cfg.Name = "login"
	}
	o := buildOptions(opts)

	return &BackoffLimiter{
		cfg:    cfg,
		now:    o.now,
		byIP:   expirable.NewLRU[string, backoffState](cfg.MaxKeys, nil, backoffStaleAfter),
		byMail: expirable.NewLRU[string, backoffState](cfg.MaxKeys, nil, backoffStaleAfter),
	}
}

// CheckAllowed returns a *LimitError while the IP or the email is locked out.
func (b *BackoffLimiter) CheckAllowed(_ context.Context, ip, email string) error {
	ipKey, mailKey := NormalizeKey(ip), NormalizeEmailKey(email)
	now := b.now()

	b.mu.Lock()
	ipState, _ := b.byIP.Peek(ipKey)
	mailState, _ := b.byMail.Peek(mailKey)
	b.mu.Unlock()

	until := ipState.blockedUntil
	if mailState.blockedUntil.After(until) {
		until = mailState.blockedUntil
	}
	if until.After(now) {
		metrics.RecordRejection(b.cfg.Name)
		return &LimitError{Limiter: b.cfg.Name, RetryAfter: until.Sub(now)}
	}
	return nil
}

// RecordFailure increments both counters and recomputes their lockouts.
func (b *BackoffLimiter) RecordFailure(_ context.Context, ip, email string) {
	ipKey, mailKey := NormalizeKey(ip), NormalizeEmailKey(email)
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail(b.byIP, ipKey, now)
	b.fail(b.byMail, mailKey, now)
}

// RecordSuccess clears both entries so the caller is allowed immediately.
func (b *BackoffLimiter) RecordSuccess(_ context.Context, ip, email string) {
	ipKey, mailKey := NormalizeKey(ip), NormalizeEmailKey(email)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.byIP.Remove(ipKey)
	b.byMail.Remove(mailKey)
}

// Delay returns the lockout applied after the n-th consecutive failure.
func (b *BackoffLimiter) Delay(failures int) time.Duration {
	return backoffDelay(failures, b.cfg.MaxBackoff)
}

func (b *BackoffLimiter) fail(store *expirable.LRU[string, backoffState], key string, now time.Time) {
	state, _ := store.Get(key)
	state.failureCount++
	state.lastFailureAt = now
	state.blockedUntil = now.Add(backoffDelay(state.failureCount, b.cfg.MaxBackoff))
	store.Add(key, state)
}

func backoffDelay(failures int, max time.Duration) time.Duration {
	if failures <= 0 {
		return 0
	}
	exp := failures
	if exp > maxBackoffExponent {
		exp = maxBackoffExponent
	}
	d := time.Duration(1<<exp) * time.Second
	if d > max {
		d = max
	}
	return d
}
