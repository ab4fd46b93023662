//go:build integration

package bucket_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"autoscuola/internal/ratelimit/store/bucket"
	"autoscuola/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *bucket.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = bucket.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestFixedWindow() {
	ctx := context.Background()
	for i := range 3 {
		result, err := s.store.Allow(ctx, "ratelimit:contact:ip:1", 3, time.Minute)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(2-i, result.Remaining)
	}

	result, err := s.store.Allow(ctx, "ratelimit:contact:ip:1", 3, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Positive(result.RetryAfter)
	s.LessOrEqual(result.RetryAfter, 60)

	ttl, err := s.redis.Client.PTTL(ctx, "ratelimit:contact:ip:1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisStoreSuite) TestReset() {
	ctx := context.Background()
	_, err := s.store.Allow(ctx, "ratelimit:contact:ip:2", 1, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(ctx, "ratelimit:contact:ip:2"))

	result, err := s.store.Allow(ctx, "ratelimit:contact:ip:2", 1, time.Minute)
	s.Require().NoError(err)
	s.True(result.Allowed)
}
