// Package ratelimit throttles quote traffic per business, falling back to the
// client address for anonymous calculator requests.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter counts one event for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Backend names a Limiter implementation.
type Backend string

const (
	BackendSliding Backend = "sliding"
	BackendFixed   Backend = "fixed"
)

// ParseBackend validates a backend name; empty selects BackendSliding.
func ParseBackend(raw string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(raw))); b {
	case "":
		return BackendSliding, nil
	case BackendSliding, BackendFixed:
		return b, nil
	default:
		return "", fmt.Errorf("unknown rate limit backend %q", raw)
	}
}

// Sliding is a sliding window limiter backed by Redis sorted sets.
type Sliding struct {
	Client *redis.Client
	Prefix string
	Window time.Duration
	Max    int
	now    func() time.Time
}

// Allow registers an event for key and reports whether it is within the limit.
func (l Sliding) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	if l.now != nil {
		now = l.now()
	}
	until := now.Add(l.Window)
	if l.Client == nil || l.Max <= 0 || l.Window <= 0 {
		return Result{Allowed: true, Limit: l.Max, Remaining: l.Max, Reset: until}, nil
	}

	score := float64(now.UnixNano())
	cutoff := float64(now.Add(-l.Window).UnixNano())
	redisKey := l.Prefix + ":ratelimit:" + key
	member := fmt.Sprintf("%s:%s", key, uuid.NewString())

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%f", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: score, Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{Limit: l.Max, Reset: until}, err
	}

	current := int(countCmd.Val())
	remaining := l.Max - current
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: current <= l.Max, Limit: l.Max, Remaining: remaining, Reset: until}, nil
}

// Fixed adapts a ulule fixed window limiter.
type Fixed struct {
	L *limiter.Limiter
}

// NewFixed builds a fixed window limiter over store.
func NewFixed(store limiter.Store, window time.Duration, max int) Fixed {
	return Fixed{L: limiter.New(store, limiter.Rate{Period: window, Limit: int64(max)})}
}

// NewRedisStore wires the ulule store onto the shared Redis client.
func NewRedisStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix + ":ratelimit:fixed"})
}

// Allow implements Limiter.
func (f Fixed) Allow(ctx context.Context, key string) (Result, error) {
	lc, err := f.L.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:   !lc.Reached,
		Limit:     int(lc.Limit),
		Remaining: int(lc.Remaining),
		Reset:     time.Unix(lc.Reset, 0),
	}, nil
}

// New selects a Limiter for backend.
func New(backend Backend, rdb *redis.Client, prefix string, window time.Duration, max int) (Limiter, error) {
	switch backend {
	case BackendFixed:
		store, err := NewRedisStore(rdb, prefix)
		if err != nil {
			return nil, fmt.Errorf("ratelimit store: %w", err)
		}
		return NewFixed(store, window, max), nil
	case BackendSliding, "":
		return Sliding{Client: rdb, Prefix: prefix, Window: window, Max: max}, nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", backend)
	}
}
