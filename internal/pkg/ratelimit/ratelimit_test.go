package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter(PerMinute(6, 2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "web-01")
		require.NoError(t, err)
		assert.True(t, ok, "burst request %d", i)
	}
	ok, err := l.Allow(ctx, "web-01")
	require.NoError(t, err)
	assert.False(t, ok, "burst exhausted")

	ok, err = l.Allow(ctx, "web-02")
	require.NoError(t, err)
	assert.True(t, ok, "keys have separate budgets")
	assert.Equal(t, 2, l.Len())
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	l := NewMemoryLimiter(Policy{PerSecond: 1, Burst: 1})
	l.idleTTL = time.Millisecond

	_, _ = l.Allow(context.Background(), "web-01")
	time.Sleep(5 * time.Millisecond)
	l.Cleanup()
	assert.Zero(t, l.Len())
}

func TestPerMinute(t *testing.T) {
	p := PerMinute(120, 5)
	assert.InDelta(t, 2.0, p.PerSecond, 1e-9)
	assert.Equal(t, 5, p.Burst)
}

// Requires a running Redis; skipped otherwise.
func TestRedisLimiter_Integration(t *testing.T) {
	ctx := context.Background()
	client, err := NewRedisClient(ctx, "localhost:6379", "", 0)
	if err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}
	defer client.Close()

	key := "test-" + time.Now().Format("150405.000000")
	l := NewRedisLimiter(client, Policy{PerSecond: 1.0 / 60, Burst: 1}, "fleetfix:ratelimit:")
	defer client.Del(ctx, "fleetfix:ratelimit:"+key)

	ok, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
