package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/stylebook/internal/models"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "start miniredis")
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisWindowLimiter_MinuteCeiling(t *testing.T) {
	_, client := newTestRedis(t)
	clock := newFakeClock()
	l := NewRedisWindowLimiter(client, WindowConfig{Name: "booking", PerMinute: 2, PerHour: 10}, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, l.Admit(ctx, "198.51.100.1"))
	clock.Advance(15 * time.Second)
	require.NoError(t, l.Admit(ctx, "198.51.100.1"))

	err := l.CheckAllowed(ctx, "198.51.100.1")
	require.ErrorIs(t, err, models.ErrRateLimitExceeded)

	var limitErr *LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 45*time.Second, limitErr.RetryAfter)

	assert.NoError(t, l.CheckAllowed(ctx, "198.51.100.2"))

	clock.Advance(46 * time.Second)
	assert.NoError(t, l.CheckAllowed(ctx, "198.51.100.1"))
}

func TestRedisWindowLimiter_HourCeilingAndPurge(t *testing.T) {
	mr, client := newTestRedis(t)
	clock := newFakeClock()
	l := NewRedisWindowLimiter(client, WindowConfig{Name: "ai", PerMinute: 10, PerHour: 3}, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Admit(ctx, "k"))
		clock.Advance(5 * time.Minute)
	}
	assert.ErrorIs(t, l.CheckAllowed(ctx, "k"), models.ErrRateLimitExceeded)

	clock.Advance(time.Hour)
	require.NoError(t, l.Admit(ctx, "k"))

	members, err := mr.ZMembers("stylebook:rl:ai:k")
	require.NoError(t, err)
	assert.Len(t, members, 1, "expired attempts are trimmed on record")
	assert.Greater(t, mr.TTL("stylebook:rl:ai:k"), time.Duration(0))
}

func TestRedisWindowLimiter_CheckDoesNotWrite(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedisWindowLimiter(client, WindowConfig{Name: "booking", PerMinute: 1, PerHour: 1})
	ctx := context.Background()

	require.NoError(t, l.CheckAllowed(ctx, "k"))
	assert.False(t, mr.Exists("stylebook:rl:booking:k"))
}

func TestRedisWindowLimiter_ConcurrentRecords(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedisWindowLimiter(client, WindowConfig{Name: "booking", PerMinute: 1000, PerHour: 1000})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.RecordAttempt(ctx, "same-ip"))
		}()
	}
	wg.Wait()

	members, err := mr.ZMembers("stylebook:rl:booking:same-ip")
	require.NoError(t, err)
	assert.Len(t, members, 50)
}

func TestRedisWindowLimiter_ConcurrentAdmitNeverPassesCeiling(t *testing.T) {
	mr, client := newTestRedis(t)
	clock := newFakeClock()
	l := NewRedisWindowLimiter(client, WindowConfig{Name: "booking", PerMinute: 5, PerHour: 100}, WithClock(clock.Now))
	ctx := context.Background()

	var admitted, rejected int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Admit(ctx, "203.0.113.9")
			switch {
			case err == nil:
				atomic.AddInt32(&admitted, 1)
			case errors.Is(err, models.ErrRateLimitExceeded):
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), atomic.LoadInt32(&admitted))
	assert.Equal(t, int32(45), atomic.LoadInt32(&rejected))
	members, err := mr.ZMembers("stylebook:rl:booking:203.0.113.9")
	require.NoError(t, err)
	assert.Len(t, members, 5)
}

func TestRedisWindowLimiter_AdmitRetryAfter(t *testing.T) {
	_, client := newTestRedis(t)
	clock := newFakeClock()
	l := NewRedisWindowLimiter(client, WindowConfig{Name: "booking", PerMinute: 2, PerHour: 100}, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, l.Admit(ctx, "k"))
	clock.Advance(20 * time.Second)
	require.NoError(t, l.Admit(ctx, "k"))

	err := l.Admit(ctx, "k")
	var limitErr *LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 40*time.Second, limitErr.RetryAfter)
}

func TestRedisWindowLimiter_RedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedisWindowLimiter(client, WindowConfig{Name: "booking", PerMinute: 1, PerHour: 1})
	mr.Close()

	err := l.CheckAllowed(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrRateLimitExceeded), "storage failures are not rate limit rejections")
}
