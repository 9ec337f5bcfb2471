package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/voucherportal/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(enabled bool) *config.PolicyHolder {
	return config.NewStaticPolicyHolder(config.RedemptionPolicy{
		RateLimit: config.RedeemLimiter{Enabled: enabled, Rate: 1, Burst: 2},
	})
}

func TestRedeemLimiterAllows(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewRedeemLimiterWithClient(client, testPolicy(true))

	hash := redis.NewScript(tokenBucketScript).Hash()
	mock.ExpectEvalSha(hash, []string{"redeem:user:42"}, float64(1), 2, int64(4000)).
		SetVal([]interface{}{int64(1), int64(1), int64(1735689600000)})

	res, err := limiter.Allow(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, 2, res.Limit)
	assert.Zero(t, res.RetryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeemLimiterDenies(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewRedeemLimiterWithClient(client, testPolicy(true))

	hash := redis.NewScript(tokenBucketScript).Hash()
	mock.ExpectEvalSha(hash, []string{"redeem:user:42"}, float64(1), 2, int64(4000)).
		SetVal([]interface{}{int64(0), int64(0), int64(1735689600000)})

	res, err := limiter.Allow(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeemLimiterDisabledByPolicy(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewRedeemLimiterWithClient(client, testPolicy(false))

	res, err := limiter.Allow(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	release, ok, err := limiter.LockUser(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilRedeemLimiterAllows(t *testing.T) {
	var limiter *RedeemLimiter
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestTokenBucketValidatesInput(t *testing.T) {
	client, _ := redismock.NewClientMock()
	bucket := NewTokenBucket(client)

	_, err := bucket.Allow(context.Background(), "", 1, 1)
	assert.Error(t, err)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.Error(t, err)
	_, err = bucket.Allow(context.Background(), "k", 1, 0)
	assert.Error(t, err)
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 4*time.Second, defaultBucketTTL(1, 2))
	assert.Equal(t, time.Second, defaultBucketTTL(100, 1))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 1))
}
