// Package lock serialises edits to a single quote draft across API replicas.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotConfigured is returned when the locker has no Redis client.
	ErrNotConfigured = errors.New("lock: redis client not configured")
	// ErrBusy is returned when the lock stays held past the wait budget.
	ErrBusy = errors.New("lock: resource busy")
)

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

// Locker provides a Redis-backed mutual exclusion keyed by quote draft.
type Locker struct {
	R            *redis.Client
	Prefix       string
	TTL          time.Duration
	RetryBackoff time.Duration
	// MaxWait bounds how long WithLock polls before giving up with ErrBusy.
	MaxWait time.Duration
}

// Key returns the lock key guarding the given draft.
func (l Locker) Key(draftID string) string {
	prefix := strings.TrimSpace(l.Prefix)
	if prefix == "" {
		prefix = "atelier"
	}
	return fmt.Sprintf("%s:quote:lock:%s", prefix, draftID)
}

// WithDraft runs fn while holding the lock for draftID.
func (l Locker) WithDraft(ctx context.Context, draftID string, fn func(context.Context) error) error {
	return l.WithLock(ctx, l.Key(draftID), l.TTL, fn)
}

// WithLock executes fn while holding a lock for key. The lock is released
// even if fn returns an error and only by the holder that acquired it.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return ErrNotConfigured
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	wait := l.MaxWait
	if wait <= 0 {
		wait = ttl
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	token := uuid.NewString()
	for {
		ok, err := l.R.SetNX(waitCtx, key, token, ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return ErrBusy
			}
			return err
		}
		if ok {
			defer l.release(key, token)
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrBusy
		case <-timer.C:
		}
	}
}

func (l Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.R.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}
