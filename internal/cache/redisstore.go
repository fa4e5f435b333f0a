package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/byggbuild/bygg/internal/backoff"
	"github.com/redis/go-redis/v9"
)

// RedisStore is an opt-in Store backed by a single Redis hash, one field
// per action name. It exists for the case where a build cache is shared
// across machines or ephemeral CI runners — a shared cache, not distributed
// execution, so it doesn't contradict the core's not-distributed non-goal.
type RedisStore struct {
	client  *redis.Client
	hashKey string
	retry   backoff.RetryPolicy

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRedisStore creates a RedisStore using client, storing all entries in
// the Redis hash named hashKey (e.g. "bygg:cache:<project>").
func NewRedisStore(client *redis.Client, hashKey string) *RedisStore {
	policy := backoff.NewExponentialBackoffPolicy(50 * time.Millisecond)
	policy.MaxRetries = 5
	return &RedisStore{
		client:  client,
		hashKey: hashKey,
		retry:   backoff.WithJitter(policy, backoff.FullJitter),
		entries: make(map[string]Entry),
	}
}

// Load fetches every field of the hash into memory, retrying transient
// connection errors with jittered exponential backoff before giving up and
// treating the store as empty.
func (s *RedisStore) Load() error {
	ctx := context.Background()
	raw, err := withRetry(ctx, s.retry, func() (map[string]string, error) {
		return s.client.HGetAll(ctx, s.hashKey).Result()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.entries = make(map[string]Entry)
		return nil
	}

	entries := make(map[string]Entry, len(raw))
	for name, v := range raw {
		var e Entry
		if jsonErr := json.Unmarshal([]byte(v), &e); jsonErr == nil {
			entries[name] = e
		}
	}
	s.entries = entries
	return nil
}

// Save replaces the Redis hash with the in-memory entries in one MULTI/EXEC
// pipeline, so entries dropped by Remove are dropped from Redis as well.
func (s *RedisStore) Save() error {
	s.mu.RLock()
	fields := make(map[string]interface{}, len(s.entries))
	for name, e := range s.entries {
		b, err := json.Marshal(e)
		if err != nil {
			s.mu.RUnlock()
			return err
		}
		fields[name] = b
	}
	s.mu.RUnlock()

	ctx := context.Background()
	_, err := withRetry(ctx, s.retry, func() ([]redis.Cmder, error) {
		return s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.hashKey)
			if len(fields) > 0 {
				pipe.HSet(ctx, s.hashKey, fields)
			}
			return nil
		})
	})
	return err
}

func (s *RedisStore) Get(name string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e, ok
}

func (s *RedisStore) Set(name string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = e
}

func (s *RedisStore) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, name)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// withRetry runs op, retrying on error according to s.retry until retries
// are exhausted or the operation succeeds.
func withRetry[T any](ctx context.Context, retry backoff.RetryPolicy, op func() (T, error)) (T, error) {
	retrier := backoff.NewRetrier(retry)
	for {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if waitErr := retrier.Next(ctx, err); waitErr != nil {
			return v, err
		}
	}
}
