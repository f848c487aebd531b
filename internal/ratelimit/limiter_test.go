package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSlidingAllow(t *testing.T) {
	_, client := newRedis(t)
	l := Sliding{Client: client, Prefix: "test", Window: time.Minute, Max: 2}
	ctx := context.Background()

	res, err := l.Allow(ctx, "business:b1")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, 1, res.Remaining)

	res, err = l.Allow(ctx, "business:b1")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, 0, res.Remaining)

	res, err = l.Allow(ctx, "business:b1")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	res, err = l.Allow(ctx, "business:b2")
	require.NoError(t, err)
	require.True(t, res.Allowed, "keys are counted separately")
}

func TestSlidingWindowSlides(t *testing.T) {
	_, client := newRedis(t)
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	l := Sliding{Client: client, Prefix: "test", Window: time.Second, Max: 1, now: func() time.Time { return now }}
	ctx := context.Background()

	res, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	now = now.Add(500 * time.Millisecond)
	res, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	now = now.Add(3 * time.Second)
	res, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestSlidingDisabled(t *testing.T) {
	res, err := Sliding{}.Allow(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestFixedAllow(t *testing.T) {
	l := NewFixed(memory.NewStore(), time.Minute, 1)
	ctx := context.Background()

	res, err := l.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, 1, res.Limit)

	res, err = l.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, 0, res.Remaining)
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	require.Equal(t, BackendSliding, b)

	b, err = ParseBackend(" Fixed ")
	require.NoError(t, err)
	require.Equal(t, BackendFixed, b)

	_, err = ParseBackend("token_bucket")
	require.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	_, client := newRedis(t)

	l, err := New(BackendSliding, client, "test", time.Minute, 5)
	require.NoError(t, err)
	require.IsType(t, Sliding{}, l)

	_, err = New("bogus", client, "test", time.Minute, 5)
	require.Error(t, err)
}
