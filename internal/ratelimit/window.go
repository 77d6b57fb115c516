package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/BradenHooton/stylebook/internal/metrics"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour

	// DefaultMaxKeys bounds the number of distinct keys tracked per limiter.
	DefaultMaxKeys = 20000
	// DefaultIdleTTL drops keys that have not recorded an attempt for this long.
	DefaultIdleTTL = 2 * time.Hour
)

// WindowConfig configures a two-window sliding limiter.
// A non-positive ceiling disables that window.
type WindowConfig struct {
	Name      string // metrics label, e.g. "booking"
	PerMinute int
	PerHour   int
	MaxKeys   int
	IdleTTL   time.Duration
}

// WindowLimiter counts attempts per key in a trailing minute and a trailing hour.
// Keys live in a size-bounded LRU with idle expiry so a flood of one-off
// addresses evicts old keys instead of growing memory.
type WindowLimiter struct {
	cfg WindowConfig
	now func() time.Time

	mu    sync.Mutex // serializes get-or-create; window contents use the per-key lock
	store *expirable.LRU[string, *attemptWindow]
}

// attemptWindow holds the timestamps for one key, oldest first.
type attemptWindow struct {
	mu     sync.Mutex
	minute []time.Time
	hour   []time.Time
}

// NewWindowLimiter creates an in-memory sliding window limiter.
func NewWindowLimiter(cfg WindowConfig, opts ...Option) *WindowLimiter {
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.Name == "" {
		cfg.Name = "window"
	}
	o := buildOptions(opts)

	return &WindowLimiter{
		cfg:   cfg,
		now:   o.now,
		store: expirable.NewLRU[string, *attemptWindow](cfg.MaxKeys, nil, cfg.IdleTTL),
	}
}

// CheckAllowed returns a *LimitError when either window is at its ceiling.
// It does not modify the window.
func (l *WindowLimiter) CheckAllowed(_ context.Context, key string) error {
	key = NormalizeKey(key)
	w, ok := l.store.Peek(key)
	if !ok {
		return nil
	}

	now := l.now()
	w.mu.Lock()
	minuteCount, minuteOldest := countSince(w.minute, now.Add(-minuteWindow))
	hourCount, hourOldest := countSince(w.hour, now.Add(-hourWindow))
	w.mu.Unlock()

	if l.cfg.PerMinute > 0 && minuteCount >= l.cfg.PerMinute {
		return l.reject(minuteOldest.Add(minuteWindow).Sub(now))
	}
	if l.cfg.PerHour > 0 && hourCount >= l.cfg.PerHour {
		return l.reject(hourOldest.Add(hourWindow).Sub(now))
	}
	return nil
}

// RecordAttempt appends the current time to both windows for key.
// Expired entries are purged first so each window only holds in-horizon timestamps.
func (l *WindowLimiter) RecordAttempt(_ context.Context, key string) error {
	w := l.window(NormalizeKey(key))

	w.mu.Lock()
	w.record(l.now())
	w.mu.Unlock()
	return nil
}

// Admit checks the key and, when allowed, records the attempt. Both steps run
// under the key's lock, so concurrent callers never pass a ceiling.
func (l *WindowLimiter) Admit(_ context.Context, key string) error {
	w := l.window(NormalizeKey(key))

	w.mu.Lock()
	now := l.now()
	w.minute = purgeBefore(w.minute, now.Add(-minuteWindow))
	w.hour = purgeBefore(w.hour, now.Add(-hourWindow))

	var retryAfter time.Duration
	limited := true
	switch {
	case l.cfg.PerMinute > 0 && len(w.minute) >= l.cfg.PerMinute:
		retryAfter = w.minute[0].Add(minuteWindow).Sub(now)
	case l.cfg.PerHour > 0 && len(w.hour) >= l.cfg.PerHour:
		retryAfter = w.hour[0].Add(hourWindow).Sub(now)
	default:
		limited = false
		w.record(now)
	}
	w.mu.Unlock()

	if limited {
		return l.reject(retryAfter)
	}
	return nil
}

// window returns the key's window, creating it if needed. Re-adding refreshes
// the idle expiry.
func (l *WindowLimiter) window(key string) *attemptWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.store.Get(key)
	if !ok {
		w = &attemptWindow{}
	}
	l.store.Add(key, w)
	return w
}

// record must be called with w.mu held.
func (w *attemptWindow) record(now time.Time) {
	w.minute = append(purgeBefore(w.minute, now.Add(-minuteWindow)), now)
	w.hour = append(purgeBefore(w.hour, now.Add(-hourWindow)), now)
}

// Len returns the number of tracked keys.
func (l *WindowLimiter) Len() int {
	return l.store.Len()
}

func (l *WindowLimiter) reject(retryAfter time.Duration) error {
	if retryAfter < 0 {
		retryAfter = 0
	}
	metrics.RecordRejection(l.cfg.Name)
	return &LimitError{Limiter: l.cfg.Name, RetryAfter: retryAfter}
}

// countSince counts timestamps strictly after cutoff and returns the oldest of them.
func countSince(ts []time.Time, cutoff time.Time) (int, time.Time) {
	i := firstAfter(ts, cutoff)
	if i == len(ts) {
		return 0, time.Time{}
	}
	return len(ts) - i, ts[i]
}

// purgeBefore drops timestamps at or before cutoff, reusing the backing array.
func purgeBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := firstAfter(ts, cutoff)
	if i == 0 {
		return ts
	}
	n := copy(ts, ts[i:])
	return ts[:n]
}

func firstAfter(ts []time.Time, cutoff time.Time) int {
	for i, t := range ts {
		if t.After(cutoff) {
			return i
		}
	}
	return len(ts)
}
