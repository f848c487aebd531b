// Package queue hands submitted quotes to out-of-process consumers through
// Redis sorted sets. Tasks become visible at their score (unix nanos).
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrNotConfigured is returned when no Redis client is wired.
	ErrNotConfigured = errors.New("queue: redis client not configured")
	// ErrInvalidKind is returned for empty kinds or kinds outside [a-z0-9_:-].
	ErrInvalidKind = errors.New("queue: invalid task kind")
)

// Task represents a job to be processed asynchronously.
type Task struct {
	Kind           string
	Payload        []byte
	IdempotencyKey string
	MaxAttempts    int
	Delay          time.Duration
	// Attempt is set on delivery; 1 for the first try.
	Attempt int
	// EnqueuedAt is set on delivery and on inspection.
	EnqueuedAt time.Time
}

type taskMessage struct {
	Kind        string `json:"kind"`
	Key         string `json:"key,omitempty"`
	Payload     []byte `json:"payload"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	AvailableAt int64  `json:"available_at"`
	EnqueuedAt  int64  `json:"enqueued_at"`
	LastError   string `json:"last_error,omitempty"`
}

func (m taskMessage) task() Task {
	return Task{
		Kind:           m.Kind,
		Payload:        m.Payload,
		IdempotencyKey: m.Key,
		MaxAttempts:    m.MaxAttempts,
		Attempt:        m.Attempt,
		EnqueuedAt:     time.Unix(0, m.EnqueuedAt),
	}
}

func decodeMessage(raw string) (taskMessage, error) {
	var msg taskMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return taskMessage{}, err
	}
	return msg, nil
}

// keyspace names the Redis keys shared by producers and consumers.
type keyspace string

func (k keyspace) prefix() string {
	if k == "" {
		return "queue"
	}
	return string(k)
}

func (k keyspace) ready(kind string) string      { return fmt.Sprintf("%s:queue:%s", k.prefix(), kind) }
func (k keyspace) processing(kind string) string { return fmt.Sprintf("%s:queue:%s:processing", k.prefix(), kind) }
func (k keyspace) dead(kind string) string       { return fmt.Sprintf("%s:queue:%s:dlq", k.prefix(), kind) }
func (k keyspace) dedup(kind, key string) string {
	return fmt.Sprintf("%s:queue:dedup:%s:%s", k.prefix(), kind, key)
}

func sanitizeKind(kind string) (string, error) {
	if kind == "" {
		return "", ErrInvalidKind
	}
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == ':':
		default:
			return "", ErrInvalidKind
		}
	}
	return kind, nil
}

// Enqueuer publishes tasks to Redis backed queues.
type Enqueuer struct {
	R           *redis.Client
	Prefix      string
	DedupTTL    time.Duration
	MaxAttempts int
}

// Enqueue inserts the task into the queue. If an idempotency key is supplied the
// task is only enqueued once within the deduplication window; a repeat is a no-op.
func (e Enqueuer) Enqueue(ctx context.Context, t Task) error {
	if e.R == nil {
		return ErrNotConfigured
	}
	kind, err := sanitizeKind(t.Kind)
	if err != nil {
		return err
	}
	ks := keyspace(e.Prefix)
	now := time.Now()
	msg := taskMessage{
		Kind:        kind,
		Key:         t.IdempotencyKey,
		Payload:     t.Payload,
		MaxAttempts: t.MaxAttempts,
		AvailableAt: now.Add(t.Delay).UnixNano(),
		EnqueuedAt:  now.UnixNano(),
	}
	if msg.MaxAttempts <= 0 {
		msg.MaxAttempts = e.MaxAttempts
	}
	if msg.MaxAttempts <= 0 {
		msg.MaxAttempts = 10
	}

	if msg.Key != "" {
		ttl := e.DedupTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ok, err := e.R.SetNX(ctx, ks.dedup(kind, msg.Key), "1", ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := e.R.ZAdd(ctx, ks.ready(kind), redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err(); err != nil {
		return err
	}
	QueueEnqueuedTotal.WithLabelValues(kind).Inc()
	return nil
}

// Pending lists the tasks of kind waiting for delivery, earliest first.
func (e Enqueuer) Pending(ctx context.Context, kind string) ([]Task, error) {
	return e.list(ctx, kind, func(ks keyspace, kind string) ([]string, error) {
		return e.R.ZRange(ctx, ks.ready(kind), 0, -1).Result()
	})
}

// DeadLetters lists the tasks of kind that exhausted their attempts, newest first.
func (e Enqueuer) DeadLetters(ctx context.Context, kind string) ([]Task, error) {
	return e.list(ctx, kind, func(ks keyspace, kind string) ([]string, error) {
		return e.R.LRange(ctx, ks.dead(kind), 0, -1).Result()
	})
}

func (e Enqueuer) list(ctx context.Context, kind string, fetch func(keyspace, string) ([]string, error)) ([]Task, error) {
	if e.R == nil {
		return nil, ErrNotConfigured
	}
	kind, err := sanitizeKind(kind)
	if err != nil {
		return nil, err
	}
	raws, err := fetch(keyspace(e.Prefix), kind)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	out := make([]Task, 0, len(raws))
	for _, raw := range raws {
		msg, err := decodeMessage(raw)
		if err != nil {
			continue
		}
		out = append(out, msg.task())
	}
	return out, nil
}

// Worker consumes tasks for a specific kind.
type Worker struct {
	R                 *redis.Client
	Prefix            string
	Kind              string
	Concurrency       int
	VisibilityTimeout time.Duration
	Handler           func(context.Context, Task) error
	RetryBase         time.Duration
	RetryJitter       float64
	PollInterval      time.Duration
	Logger            *zerolog.Logger
}

// Run processes tasks until the context is cancelled. Active tasks are tracked
// in a processing set so a crashed worker's tasks are redelivered after the
// visibility timeout.
func (w Worker) Run(ctx context.Context) error {
	if w.R == nil {
		return ErrNotConfigured
	}
	if w.Handler == nil {
		return errors.New("queue: worker handler not configured")
	}
	kind, err := sanitizeKind(w.Kind)
	if err != nil {
		return err
	}
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	visibility := w.VisibilityTimeout
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	poll := w.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	ks := keyspace(w.Prefix)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	requeue := time.NewTicker(time.Second)
	defer requeue.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-requeue.C:
			if err := w.requeueExpired(ctx, ks, kind); err != nil && ctx.Err() == nil {
				return err
			}
		default:
		}

		msg, raw, ok, err := w.claim(ctx, ks, kind, visibility)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !ok {
			if !sleepCtx(ctx, poll) {
				return nil
			}
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
		wg.Add(1)
		go func(raw string, m taskMessage) {
			defer wg.Done()
			defer func() { <-sem }()
			w.process(ctx, ks, raw, m)
		}(raw, msg)
	}
}

// claim pops the earliest due task and moves it into the processing set.
func (w Worker) claim(ctx context.Context, ks keyspace, kind string, visibility time.Duration) (taskMessage, string, bool, error) {
	now := time.Now().UnixNano()
	due, err := w.R.ZRangeByScore(ctx, ks.ready(kind), &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now), Count: 1}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return taskMessage{}, "", false, err
	}
	if len(due) == 0 {
		return taskMessage{}, "", false, nil
	}
	removed, err := w.R.ZRem(ctx, ks.ready(kind), due[0]).Result()
	if err != nil {
		return taskMessage{}, "", false, err
	}
	if removed == 0 {
		// another worker won the race
		return taskMessage{}, "", false, nil
	}
	msg, err := decodeMessage(due[0])
	if err != nil {
		w.logger().Warn().Err(err).Str("kind", kind).Msg("queue_drop_malformed")
		return taskMessage{}, "", false, nil
	}
	msg.Attempt++
	encoded, err := json.Marshal(msg)
	if err != nil {
		return taskMessage{}, "", false, err
	}
	raw := string(encoded)
	deadline := time.Now().Add(visibility).UnixNano()
	if err := w.R.ZAdd(ctx, ks.processing(kind), redis.Z{Score: float64(deadline), Member: raw}).Err(); err != nil {
		return taskMessage{}, "", false, err
	}
	return msg, raw, true, nil
}

func (w Worker) process(ctx context.Context, ks keyspace, raw string, msg taskMessage) {
	task := msg.task()
	err := w.Handler(ctx, task)
	// bookkeeping must survive shutdown of the run context
	bg := context.WithoutCancel(ctx)
	_ = w.R.ZRem(bg, ks.processing(msg.Kind), raw).Err()
	if err == nil {
		QueueProcessedTotal.WithLabelValues(msg.Kind, "ok").Inc()
		return
	}
	log := w.logger().With().Str("kind", msg.Kind).Str("key", msg.Key).Int("attempt", msg.Attempt).Logger()
	msg.LastError = err.Error()
	if msg.MaxAttempts > 0 && msg.Attempt >= msg.MaxAttempts {
		QueueProcessedTotal.WithLabelValues(msg.Kind, "dead").Inc()
		encoded, mErr := json.Marshal(msg)
		if mErr == nil {
			_ = w.R.LPush(bg, ks.dead(msg.Kind), encoded).Err()
		}
		if msg.Key != "" {
			_ = w.R.Del(bg, ks.dedup(msg.Kind, msg.Key)).Err()
		}
		log.Error().Err(err).Msg("queue_task_dead_lettered")
		return
	}
	QueueProcessedTotal.WithLabelValues(msg.Kind, "retry").Inc()
	delay := Backoff(w.RetryBase, msg.Attempt, w.RetryJitter)
	msg.AvailableAt = time.Now().Add(delay).UnixNano()
	encoded, mErr := json.Marshal(msg)
	if mErr != nil {
		return
	}
	_ = w.R.ZAdd(bg, ks.ready(msg.Kind), redis.Z{Score: float64(msg.AvailableAt), Member: string(encoded)}).Err()
	log.Warn().Err(err).Dur("retry_in", delay).Msg("queue_task_retry")
}

func (w Worker) requeueExpired(ctx context.Context, ks keyspace, kind string) error {
	now := time.Now().UnixNano()
	expired, err := w.R.ZRangeByScore(ctx, ks.processing(kind), &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now)}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for _, raw := range expired {
		removed, err := w.R.ZRem(ctx, ks.processing(kind), raw).Result()
		if err != nil || removed == 0 {
			continue
		}
		msg, err := decodeMessage(raw)
		if err != nil {
			continue
		}
		msg.AvailableAt = time.Now().UnixNano()
		encoded, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		_ = w.R.ZAdd(ctx, ks.ready(kind), redis.Z{Score: float64(msg.AvailableAt), Member: string(encoded)}).Err()
		w.logger().Warn().Str("kind", kind).Str("key", msg.Key).Msg("queue_task_visibility_expired")
	}
	return nil
}

func (w Worker) logger() *zerolog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// Backoff returns an exponential backoff duration for the provided attempt.
// Jitter is a fraction of the delay, e.g. 0.2 for ±20%.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		attempt = 16
	}
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitter <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * float64(d) * jitter
	return d + time.Duration(delta)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
