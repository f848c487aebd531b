package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists drafts for the lifetime of an edit session.
type Store interface {
	Get(ctx context.Context, id string) (Draft, error)
	Put(ctx context.Context, d Draft, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps drafts as JSON strings with a sliding TTL.
type RedisStore struct {
	R      *redis.Client
	Prefix string
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{R: client, Prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "atelier"
	}
	return fmt.Sprintf("%s:quote:draft:%s", prefix, id)
}

// Get loads a draft or returns ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (Draft, error) {
	if s == nil || s.R == nil {
		return Draft{}, errors.New("quote: redis store not configured")
	}
	raw, err := s.R.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, err
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return d, nil
}

// Put stores d and resets its TTL.
func (s *RedisStore) Put(ctx context.Context, d Draft, ttl time.Duration) error {
	if s == nil || s.R == nil {
		return errors.New("quote: redis store not configured")
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, s.key(d.ID), raw, ttl).Err()
}

// Delete removes a draft; deleting a missing draft returns ErrNotFound.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.R == nil {
		return errors.New("quote: redis store not configured")
	}
	n, err := s.R.Del(ctx, s.key(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
