package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow prunes, counts and conditionally appends in one round trip.
// ARGV: now(ms), cutoff(ms), window(ms), limit, member.
// Returns {allowed, count, retry_after_ms}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[3])
local limit = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, ARGV[1], ARGV[5])
  redis.call('PEXPIRE', key, ARGV[3])
  return {1, count + 1, 0}
end

local retry = window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  retry = tonumber(oldest[2]) + window - now
end
return {0, count, retry}
`)

// RedisLimiter keeps the sliding window in a Redis sorted set per key, so all
// instances pointing at the same Redis share one budget.
type RedisLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// RedisOption customizes a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithRedisPrefix sets the key prefix (default "empleaido:ratelimit").
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *RedisLimiter) {
		if p := strings.Trim(prefix, ":"); p != "" {
			r.prefix = p
		}
	}
}

// WithRedisClock overrides time.Now, for tests.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *RedisLimiter) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRedisLimiter admits up to limit requests per window for each key.
func NewRedisLimiter(rdb redis.Scripter, limit int, window time.Duration, opts ...RedisOption) *RedisLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	r := &RedisLimiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		prefix: "empleaido:ratelimit",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Admit implements Limiter. Errors come from Redis.
func (r *RedisLimiter) Admit(ctx context.Context, caller, endpoint string) (Decision, error) {
	now := r.now()
	nowMs := now.UnixMilli()
	windowMs := r.window.Milliseconds()
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())

	res, err := slidingWindow.Run(ctx, r.rdb,
		[]string{r.prefix + ":" + Key(caller, endpoint)},
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(nowMs-windowMs, 10),
		strconv.FormatInt(windowMs, 10),
		strconv.Itoa(r.limit),
		member,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: redis: unexpected reply %v", res)
	}

	count := int(res[1])
	if res[0] == 1 {
		return Decision{Allowed: true, Limit: r.limit, Remaining: max(r.limit-count, 0)}, nil
	}
	return Decision{
		Allowed:    false,
		Limit:      r.limit,
		Remaining:  0,
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}
