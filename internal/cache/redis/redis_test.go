package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "board:mma", boardKey("MMA"))
	assert.Equal(t, "lock:alerts:scan", lockKey("alerts:scan"))
	assert.Equal(t, "ratelimit:ip:1.2.3.4", rateLimitKey("ip:1.2.3.4"))
	assert.True(t, isPattern("board:*"))
	assert.False(t, isPattern("board:mma"))
}

func TestPayloadBytes(t *testing.T) {
	b, ok := payloadBytes("x")
	assert.True(t, ok)
	assert.Equal(t, []byte("x"), b)

	_, ok = payloadBytes(42)
	assert.False(t, ok)
}

func TestBoardCache(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	cache := NewBoardCache(client, time.Minute)

	_, err := cache.GetBoard(ctx, "MMA")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := domain.CachedBoard{
		Sport: "MMA",
		Board: domain.Board{"UFC": {{
			ID:        "1.1",
			EventName: "A v B",
			Sport:     "MMA",
		}}},
		UpdatedAt: updated,
	}
	require.NoError(t, cache.SetBoard(ctx, in))

	out, err := cache.GetBoard(ctx, "mma")
	require.NoError(t, err)
	assert.Equal(t, "MMA", out.Sport)
	assert.True(t, updated.Equal(out.UpdatedAt))
	require.Len(t, out.Board["UFC"], 1)
	assert.Equal(t, "A v B", out.Board["UFC"][0].EventName)

	ttl, err := client.Underlying().TTL(ctx, boardKey("MMA")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestLockManager(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	lm := NewLockManager(client)

	unlock, err := lm.Acquire(ctx, "alerts", 10*time.Second)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "alerts", 10*time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()

	again, err := lm.Acquire(ctx, "alerts", 10*time.Second)
	require.NoError(t, err)
	again()
}

func TestRateLimiter(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	rl := NewRateLimiter(client)

	for i := range 3 {
		d, err := rl.Check(ctx, "viewer", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 2-i, d.Remaining)
	}

	ok, err := rl.Allow(ctx, "viewer", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rl.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	rl := NewRateLimiter(client)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, err := rl.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rl.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(61 * time.Second)
	ok, err = rl.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignalBus(t *testing.T) {
	client := setupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	bus := NewSignalBus(client, 0)

	sub, err := bus.Subscribe(ctx, "board:*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "board:mma", []byte("hello")))
	select {
	case msg := <-sub:
		assert.Equal(t, []byte("hello"), msg)
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	msgs, err := bus.StreamRead(ctx, "alerts", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, bus.StreamAppend(ctx, "alerts", []byte("a")))
	require.NoError(t, bus.StreamAppend(ctx, "alerts", []byte("b")))

	msgs, err = bus.StreamRead(ctx, "alerts", "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("a"), msgs[0].Payload)
	assert.Equal(t, []byte("b"), msgs[1].Payload)
}
