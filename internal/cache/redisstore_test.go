package cache

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "bygg:cache:test")
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s := newTestRedisStore(t)
	require.NoError(t, s.Load())

	s.Set("x", Entry{InputsDigest: "in", OutputsDigest: "out"})
	require.NoError(t, s.Save())

	s2 := NewRedisStore(s.client, s.hashKey)
	require.NoError(t, s2.Load())
	e, ok := s2.Get("x")
	require.True(t, ok)
	assert.Equal(t, "in", e.InputsDigest)
	assert.Equal(t, "out", e.OutputsDigest)
}

func TestRedisStoreMissingHashLoadsEmpty(t *testing.T) {
	s := newTestRedisStore(t)
	require.NoError(t, s.Load())
	_, ok := s.Get("nope")
	assert.False(t, ok)
}

func TestRedisStoreRemove(t *testing.T) {
	s := newTestRedisStore(t)
	require.NoError(t, s.Load())
	s.Set("x", Entry{InputsDigest: "1"})
	s.Remove("x")
	_, ok := s.Get("x")
	assert.False(t, ok)
}
