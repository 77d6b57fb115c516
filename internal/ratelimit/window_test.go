package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/stylebook/internal/models"
)

// fakeClock is a manually advanced clock shared by the limiter tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestWindowLimiter_MinuteCeiling(t *testing.T) {
	clock := newFakeClock()
	l := NewWindowLimiter(WindowConfig{Name: "booking", PerMinute: 3, PerHour: 100}, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.CheckAllowed(ctx, "198.51.100.1"), "attempt %d should be allowed", i+1)
		require.NoError(t, l.RecordAttempt(ctx, "198.51.100.1"))
		clock.Advance(10 * time.Second)
	}

	err := l.CheckAllowed(ctx, "198.51.100.1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrRateLimitExceeded))

	var limitErr *LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, "booking", limitErr.Limiter)
	// oldest attempt was 30s ago, so it leaves the window in 30s
	assert.Equal(t, 30*time.Second, limitErr.RetryAfter)

	// Other keys are independent
	assert.NoError(t, l.CheckAllowed(ctx, "198.51.100.2"))

	clock.Advance(30 * time.Second)
	assert.NoError(t, l.CheckAllowed(ctx, "198.51.100.1"), "oldest attempt left the minute window")
}

func TestWindowLimiter_HourCeiling(t *testing.T) {
	clock := newFakeClock()
	l := NewWindowLimiter(WindowConfig{Name: "ai", PerMinute: 10, PerHour: 5}, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Admit(ctx, "k"))
		clock.Advance(2 * time.Minute)
	}

	err := l.CheckAllowed(ctx, "k")
	require.ErrorIs(t, err, models.ErrRateLimitExceeded)

	clock.Advance(50 * time.Minute) // first attempt is now exactly one hour old
	assert.NoError(t, l.CheckAllowed(ctx, "k"))
}

func TestWindowLimiter_WhicheverTriggersFirst(t *testing.T) {
	tests := []struct {
		name      string
		perMinute int
		perHour   int
		allowed   int
	}{
		{name: "minute first", perMinute: 2, perHour: 10, allowed: 2},
		{name: "hour first", perMinute: 10, perHour: 4, allowed: 4},
		{name: "equal", perMinute: 3, perHour: 3, allowed: 3},
		{name: "minute disabled", perMinute: 0, perHour: 6, allowed: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			l := NewWindowLimiter(WindowConfig{PerMinute: tt.perMinute, PerHour: tt.perHour}, WithClock(clock.Now))
			ctx := context.Background()

			admitted := 0
			for i := 0; i < 20; i++ {
				if l.Admit(ctx, "key") == nil {
					admitted++
				}
			}
			assert.Equal(t, tt.allowed, admitted)
		})
	}
}

func TestWindowLimiter_CheckAllowedDoesNotMutate(t *testing.T) {
	clock := newFakeClock()
	l := NewWindowLimiter(WindowConfig{PerMinute: 1, PerHour: 1}, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, l.CheckAllowed(ctx, "key"))
	}
	assert.Equal(t, 0, l.Len(), "checks alone must not create keys")

	require.NoError(t, l.RecordAttempt(ctx, "key"))
	assert.Error(t, l.CheckAllowed(ctx, "key"))
}

func TestWindowLimiter_BlankKeySharesUnknownBucket(t *testing.T) {
	l := NewWindowLimiter(WindowConfig{PerMinute: 1, PerHour: 10})
	ctx := context.Background()

	require.NoError(t, l.RecordAttempt(ctx, "   "))

	assert.Error(t, l.CheckAllowed(ctx, ""))
	assert.Error(t, l.CheckAllowed(ctx, UnknownKey))
}

func TestWindowLimiter_BoundedKeys(t *testing.T) {
	l := NewWindowLimiter(WindowConfig{PerMinute: 5, PerHour: 5, MaxKeys: 100})
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		require.NoError(t, l.RecordAttempt(ctx, fmt.Sprintf("203.0.113.%d-%d", i%256, i)))
	}

	assert.LessOrEqual(t, l.Len(), 100)
}

func TestWindowLimiter_ConcurrentRecordsAreNotLost(t *testing.T) {
	l := NewWindowLimiter(WindowConfig{PerMinute: 1000, PerHour: 1000})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.RecordAttempt(ctx, "same-ip")
		}()
	}
	wg.Wait()

	w, ok := l.store.Peek("same-ip")
	require.True(t, ok)
	assert.Len(t, w.minute, 200)
	assert.Len(t, w.hour, 200)
}

func TestWindowLimiter_ConcurrentAdmitNeverPassesCeiling(t *testing.T) {
	clock := newFakeClock()
	// Yielding on every clock read lets other goroutines run between a caller's
	// count and its record.
	yielding := func() time.Time {
		runtime.Gosched()
		return clock.Now()
	}
	l := NewWindowLimiter(WindowConfig{Name: "booking", PerMinute: 12, PerHour: 120}, WithClock(yielding))
	ctx := context.Background()

	var admitted int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit(ctx, "203.0.113.9") == nil {
				atomic.AddInt32(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(12), atomic.LoadInt32(&admitted))
	w, ok := l.store.Peek("203.0.113.9")
	require.True(t, ok)
	assert.Len(t, w.minute, 12, "rejected calls are not recorded")
}

func TestWindowLimiter_PurgesExpiredOnRecord(t *testing.T) {
	clock := newFakeClock()
	l := NewWindowLimiter(WindowConfig{PerMinute: 100, PerHour: 100}, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, l.RecordAttempt(ctx, "k"))
	}
	clock.Advance(61 * time.Minute)
	require.NoError(t, l.RecordAttempt(ctx, "k"))

	w, _ := l.store.Peek("k")
	assert.Len(t, w.minute, 1)
	assert.Len(t, w.hour, 1)
}
