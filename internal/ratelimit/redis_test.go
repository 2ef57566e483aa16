package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T, limit int, clock *testClock) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLimiter(rdb, limit, time.Minute, WithRedisClock(clock.Now)), mr
}

func TestRedisLimiter_AllowsExactlyN(t *testing.T) {
	clock := newClock()
	lim, _ := newRedisLimiter(t, 3, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		dec, err := lim.Admit(ctx, "10.0.0.1", "create_record")
		require.NoError(t, err)
		require.True(t, dec.Allowed, "request %d", i+1)
		assert.Equal(t, 2-i, dec.Remaining)
		clock.Advance(time.Second)
	}

	dec, err := lim.Admit(ctx, "10.0.0.1", "create_record")
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Greater(t, dec.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, dec.RetryAfter, time.Minute)
}

func TestRedisLimiter_WindowSlides(t *testing.T) {
	clock := newClock()
	lim, _ := newRedisLimiter(t, 2, clock)
	ctx := context.Background()

	admit := func() bool {
		dec, err := lim.Admit(ctx, "ip", "ep")
		require.NoError(t, err)
		return dec.Allowed
	}

	require.True(t, admit())
	clock.Advance(30 * time.Second)
	require.True(t, admit())
	require.False(t, admit())

	clock.Advance(30 * time.Second)
	assert.True(t, admit())

	clock.Advance(2 * time.Minute)
	assert.True(t, admit())
	assert.True(t, admit())
	assert.False(t, admit())
}

func TestRedisLimiter_UsesPrefixedSortedSet(t *testing.T) {
	clock := newClock()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	lim := NewRedisLimiter(rdb, 5, time.Minute, WithRedisClock(clock.Now), WithRedisPrefix("test:rl:"))
	_, err := lim.Admit(context.Background(), "1.2.3.4", "webhook")
	require.NoError(t, err)

	members, err := mr.ZMembers("test:rl:1.2.3.4:webhook")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRedisLimiter_ErrorWhenRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	defer rdb.Close()
	lim := NewRedisLimiter(rdb, 1, time.Minute)

	_, err := lim.Admit(context.Background(), "ip", "ep")
	assert.Error(t, err)
}
