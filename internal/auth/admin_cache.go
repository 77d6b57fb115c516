package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultAdminCacheTTL is how long an "is active admin" answer is reused.
	DefaultAdminCacheTTL  = 180 * time.Second
	defaultAdminCacheSize = 1024
	// adminLoadTimeout bounds a shared load, which no single caller can cancel.
	adminLoadTimeout = 5 * time.Second
)

// AdminLoader derives the authorization decision from the source of truth.
type AdminLoader func(ctx context.Context) (bool, error)

// cachedAuthorization is one memoized decision.
type cachedAuthorization struct {
	allowed   bool
	expiresAt time.Time
}

// AdminCache memoizes whether a token subject is an active admin so that
// authenticated requests do not hit the database every time.
//
// Concurrent misses for the same subject share one loader call. The load is
// detached from the caller that started it, and each caller stops waiting when
// its own context is done. Loader errors are returned to every waiter and are
// not cached.
type AdminCache struct {
	ttl     time.Duration
	now     func() time.Time
	entries *expirable.LRU[string, cachedAuthorization]
	group   singleflight.Group
}

// AdminCacheOption configures an AdminCache.
type AdminCacheOption func(*AdminCache)

// WithAdminCacheClock overrides time.Now for expiry checks.
func WithAdminCacheClock(now func() time.Time) AdminCacheOption {
	return func(c *AdminCache) {
		c.now = now
	}
}

// WithAdminCacheSize bounds the number of cached subjects.
func WithAdminCacheSize(n int) AdminCacheOption {
	return func(c *AdminCache) {
		if n > 0 {
			c.entries = expirable.NewLRU[string, cachedAuthorization](n, nil, c.storeTTL())
		}
	}
}

// NewAdminCache creates a cache with the given TTL. A TTL of zero or less
// disables caching and every lookup calls the loader.
func NewAdminCache(ttl time.Duration, opts ...AdminCacheOption) *AdminCache {
	if ttl < 0 {
		ttl = 0
	}
	c := &AdminCache{ttl: ttl, now: time.Now}
	c.entries = expirable.NewLRU[string, cachedAuthorization](defaultAdminCacheSize, nil, c.storeTTL())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeSubject matches how token subjects are issued: trimmed, lowercased email.
func NormalizeSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

// IsAllowed returns the cached decision for subject, calling loader on a miss
// or after expiry.
func (c *AdminCache) IsAllowed(ctx context.Context, subject string, loader AdminLoader) (bool, error) {
	if c.ttl == 0 {
		return loader(ctx)
	}

	key := NormalizeSubject(subject)
	if entry, ok := c.entries.Get(key); ok && entry.expiresAt.After(c.now()) {
		return entry.allowed, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Another flight may have refreshed the entry while we waited.
		if entry, ok := c.entries.Peek(key); ok && entry.expiresAt.After(c.now()) {
			return entry.allowed, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), adminLoadTimeout)
		defer cancel()
		allowed, err := loader(loadCtx)
		if err != nil {
			return false, err
		}
		c.entries.Add(key, cachedAuthorization{allowed: allowed, expiresAt: c.now().Add(c.ttl)})
		return allowed, nil
	})

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, fmt.Errorf("load admin authorization: %w", res.Err)
		}
		return res.Val.(bool), nil
	}
}

// storeTTL is the LRU's wall-clock eviction horizon. Freshness is decided with
// c.now against expiresAt; the LRU size is what bounds memory.
func (c *AdminCache) storeTTL() time.Duration {
	if c.ttl == 0 {
		return time.Minute
	}
	return 2 * c.ttl
}
