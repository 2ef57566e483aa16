package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *testClock {
	return &testClock{t: time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)}
}

func TestMemoryLimiter_AllowsExactlyN(t *testing.T) {
	clock := newClock()
	lim := NewMemoryLimiter(3, time.Minute, WithMemoryClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		dec, err := lim.Admit(ctx, "10.0.0.1", "get_records")
		require.NoError(t, err)
		require.True(t, dec.Allowed, "request %d", i+1)
		assert.Equal(t, 3, dec.Limit)
		assert.Equal(t, 2-i, dec.Remaining)
		clock.Advance(time.Second)
	}

	dec, err := lim.Admit(ctx, "10.0.0.1", "get_records")
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 0, dec.Remaining)
	assert.Equal(t, 57*time.Second, dec.RetryAfter)
}

func TestMemoryLimiter_WindowSlides(t *testing.T) {
	clock := newClock()
	lim := NewMemoryLimiter(2, time.Minute, WithMemoryClock(clock.Now))
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

	// the first hit leaves the window exactly 60s after it was made
	clock.Advance(30 * time.Second)
	assert.True(t, admit())
	assert.False(t, admit())

	clock.Advance(time.Minute)
	assert.True(t, admit())
	assert.True(t, admit())
}

func TestMemoryLimiter_RejectionsDoNotConsumeBudget(t *testing.T) {
	clock := newClock()
	lim := NewMemoryLimiter(1, time.Minute, WithMemoryClock(clock.Now))
	ctx := context.Background()

	dec, _ := lim.Admit(ctx, "ip", "ep")
	require.True(t, dec.Allowed)
	for i := 0; i < 5; i++ {
		clock.Advance(5 * time.Second)
		dec, _ = lim.Admit(ctx, "ip", "ep")
		require.False(t, dec.Allowed)
	}

	clock.Advance(35 * time.Second)
	dec, _ = lim.Admit(ctx, "ip", "ep")
	assert.True(t, dec.Allowed)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	lim := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	for _, k := range [][2]string{{"a", "x"}, {"b", "x"}, {"a", "y"}} {
		dec, err := lim.Admit(ctx, k[0], k[1])
		require.NoError(t, err)
		assert.True(t, dec.Allowed, "%v", k)
	}

	dec, _ := lim.Admit(ctx, "a", "x")
	assert.False(t, dec.Allowed)
}

func TestNewMemoryLimiter_Defaults(t *testing.T) {
	lim := NewMemoryLimiter(0, 0)
	assert.Equal(t, DefaultLimit, lim.limit)
	assert.Equal(t, DefaultWindow, lim.window)
}
