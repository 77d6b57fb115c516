package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/BradenHooton/stylebook/internal/metrics"
)

// admitScript trims the hour window, counts both windows and adds the attempt
// only when neither is at its ceiling. It returns {1, 0} when admitted and
// {0, retryAfterMillis} when rejected.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local perMinute = tonumber(ARGV[4])
local perHour = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[3])

if perMinute > 0 and redis.call('ZCOUNT', key, '(' .. ARGV[2], '+inf') >= perMinute then
	local oldest = redis.call('ZRANGEBYSCORE', key, '(' .. ARGV[2], '+inf', 'WITHSCORES', 'LIMIT', 0, 1)
	return {0, tonumber(oldest[2]) + 60000 - now}
end
if perHour > 0 and redis.call('ZCARD', key) >= perHour then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {0, tonumber(oldest[2]) + 3600000 - now}
end

redis.call('ZADD', key, ARGV[1], ARGV[6])
redis.call('PEXPIRE', key, ARGV[7])
return {1, 0}
`)

// RedisWindowLimiter is a WindowLimiter whose windows live in Redis sorted sets,
// so every instance behind a load balancer shares the same counts.
// Each key holds attempt timestamps (unix milliseconds) as scores and expires
// one hour after its last attempt.
type RedisWindowLimiter struct {
	cfg    WindowConfig
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisWindowLimiter creates a Redis-backed sliding window limiter.
func NewRedisWindowLimiter(client redis.UniversalClient, cfg WindowConfig, opts ...Option) *RedisWindowLimiter {
	if cfg.Name == "" {
		cfg.Name = "window"
	}
	o := buildOptions(opts)
	return &RedisWindowLimiter{
		cfg:    cfg,
		client: client,
		prefix: "stylebook:rl:" + cfg.Name + ":",
		now:    o.now,
	}
}

// CheckAllowed counts in-window attempts without modifying the set.
func (l *RedisWindowLimiter) CheckAllowed(ctx context.Context, key string) error {
	rkey := l.prefix + NormalizeKey(key)
	now := l.now()

	pipe := l.client.Pipeline()
	minuteCount := pipe.ZCount(ctx, rkey, exclusiveScore(now.Add(-minuteWindow)), "+inf")
	hourCount := pipe.ZCount(ctx, rkey, exclusiveScore(now.Add(-hourWindow)), "+inf")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis window check: %w", err)
	}

	if l.cfg.PerMinute > 0 && int(minuteCount.Val()) >= l.cfg.PerMinute {
		return l.reject(ctx, rkey, now, minuteWindow)
	}
	if l.cfg.PerHour > 0 && int(hourCount.Val()) >= l.cfg.PerHour {
		return l.reject(ctx, rkey, now, hourWindow)
	}
	return nil
}

// RecordAttempt trims expired entries and adds the current timestamp atomically.
func (l *RedisWindowLimiter) RecordAttempt(ctx context.Context, key string) error {
	rkey := l.prefix + NormalizeKey(key)
	now := l.now()

	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, rkey, "-inf", strconv.FormatInt(now.Add(-hourWindow).UnixMilli(), 10))
		pipe.ZAdd(ctx, rkey, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
		pipe.Expire(ctx, rkey, hourWindow)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis window record: %w", err)
	}
	return nil
}

// Admit checks the key and, when allowed, records the attempt in one script,
// so concurrent callers on any instance never pass a ceiling.
func (l *RedisWindowLimiter) Admit(ctx context.Context, key string) error {
	rkey := l.prefix + NormalizeKey(key)
	now := l.now()

	res, err := admitScript.Run(ctx, l.client, []string{rkey},
		now.UnixMilli(),
		now.Add(-minuteWindow).UnixMilli(),
		now.Add(-hourWindow).UnixMilli(),
		l.cfg.PerMinute,
		l.cfg.PerHour,
		uuid.NewString(),
		hourWindow.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return fmt.Errorf("redis window admit: %w", err)
	}
	if len(res) != 2 {
		return fmt.Errorf("redis window admit: unexpected reply %v", res)
	}
	if res[0] == 0 {
		return l.limitError(time.Duration(res[1]) * time.Millisecond)
	}
	return nil
}

// reject computes Retry-After from the oldest in-window member.
func (l *RedisWindowLimiter) reject(ctx context.Context, rkey string, now time.Time, window time.Duration) error {
	var retryAfter time.Duration
	oldest, err := l.client.ZRangeByScoreWithScores(ctx, rkey, &redis.ZRangeBy{
		Min:   exclusiveScore(now.Add(-window)),
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err == nil && len(oldest) == 1 {
		at := time.UnixMilli(int64(oldest[0].Score))
		retryAfter = at.Add(window).Sub(now)
	}
	return l.limitError(retryAfter)
}

func (l *RedisWindowLimiter) limitError(retryAfter time.Duration) error {
	if retryAfter < 0 {
		retryAfter = 0
	}
	metrics.RecordRejection(l.cfg.Name)
	return &LimitError{Limiter: l.cfg.Name, RetryAfter: retryAfter}
}

func exclusiveScore(t time.Time) string {
	return "(" + strconv.FormatInt(t.UnixMilli(), 10)
}
