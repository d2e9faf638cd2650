package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestInvitationLimiterExhaustsBurst(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{RateLimit: config.RateLimitConfig{
		Enabled:               true,
		InvitationAcceptRate:  0.001,
		InvitationAcceptBurst: 2,
	}}
	limiter, err := NewInvitationLimiter(cfg, newClient(t))
	require.NoError(t, err)
	require.True(t, limiter.Enabled())

	for i := 0; i < 2; i++ {
		res, err := limiter.AllowAccept(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2, res.Limit)
	}

	res, err := limiter.AllowAccept(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)

	// Buckets are per caller.
	res, err = limiter.AllowAccept(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestInvitationLimiterDisabled(t *testing.T) {
	limiter, err := NewInvitationLimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowAccept(context.Background(), "anyone")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestInvitationLimiterValidation(t *testing.T) {
	_, err := NewInvitationLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, InvitationAcceptRate: 1, InvitationAcceptBurst: 1}}, nil)
	assert.Error(t, err)

	_, err = NewInvitationLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true}}, newClient(t))
	assert.Error(t, err)
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	bucket := NewTokenBucket(newClient(t))
	_, err := bucket.Allow(context.Background(), "", 1, 1)
	assert.Error(t, err)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.Error(t, err)
	assert.Nil(t, NewTokenBucket(nil))
}
