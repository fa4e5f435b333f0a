package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Only ExponentialBackoffPolicy and Retrier are exercised by the rest of
// this tree (internal/cache's Redis store); Constant and Linear are kept as
// part of the same generic library but aren't covered here.

func TestExponentialBackoffPolicyComputeNextInterval(t *testing.T) {
	p := &ExponentialBackoffPolicy{
		InitialInterval: 10 * time.Millisecond,
		BackoffFactor:   2.0,
		MaxInterval:     100 * time.Millisecond,
		MaxRetries:      3,
	}

	iv, err := p.ComputeNextInterval(0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, iv)

	iv, err = p.ComputeNextInterval(1, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, iv)

	iv, err = p.ComputeNextInterval(2, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 40*time.Millisecond, iv)

	_, err = p.ComputeNextInterval(3, 0, nil)
	assert.Equal(t, ErrRetriesExhausted, err)
}

func TestExponentialBackoffPolicyCapsAtMaxInterval(t *testing.T) {
	p := NewExponentialBackoffPolicy(10 * time.Millisecond)
	p.MaxInterval = 30 * time.Millisecond

	iv, err := p.ComputeNextInterval(10, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Millisecond, iv)
}

func TestNewExponentialBackoffPolicyDefaults(t *testing.T) {
	p := NewExponentialBackoffPolicy(5 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, p.InitialInterval)
	assert.Equal(t, 2.0, p.BackoffFactor)
	assert.Equal(t, 0, p.MaxRetries, "0 means unlimited retries")
}

func TestRetrierNextAdvancesAndExhausts(t *testing.T) {
	policy := &ExponentialBackoffPolicy{
		InitialInterval: time.Millisecond,
		BackoffFactor:   1,
		MaxInterval:     time.Millisecond,
		MaxRetries:      2,
	}
	r := NewRetrier(policy)

	require.NoError(t, r.Next(context.Background(), nil))
	require.NoError(t, r.Next(context.Background(), nil))
	assert.Equal(t, ErrRetriesExhausted, r.Next(context.Background(), nil))
}

func TestRetrierResetAllowsFurtherRetries(t *testing.T) {
	policy := &ExponentialBackoffPolicy{
		InitialInterval: time.Millisecond,
		BackoffFactor:   1,
		MaxInterval:     time.Millisecond,
		MaxRetries:      1,
	}
	r := NewRetrier(policy)

	require.NoError(t, r.Next(context.Background(), nil))
	assert.Equal(t, ErrRetriesExhausted, r.Next(context.Background(), nil))

	r.Reset()
	require.NoError(t, r.Next(context.Background(), nil))
}

func TestRetrierNextHonorsContextCancellation(t *testing.T) {
	policy := &ExponentialBackoffPolicy{InitialInterval: time.Hour, MaxInterval: time.Hour}
	r := NewRetrier(policy)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Next(ctx, errors.New("op failed"))
	assert.Equal(t, ErrOperationCanceled, err)
}
