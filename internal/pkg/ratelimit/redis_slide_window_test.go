//go:build e2e

package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestRedisSlidingWindowLimiter(t *testing.T) {
	suite.Run(t, new(RedisSlidingWindowLimiterTestSuite))
}

type RedisSlidingWindowLimiterTestSuite struct {
	suite.Suite
	rdb redis.Cmdable
}

func (s *RedisSlidingWindowLimiterTestSuite) SetupSuite() {
	s.rdb = redis.NewClient(&redis.Options{Addr: "localhost:6379"})
}

// 生成唯一的测试键，避免测试冲突
func (s *RedisSlidingWindowLimiterTestSuite) getUniqueKey(name string) string {
	return fmt.Sprintf("test:%s:%d", name, time.Now().UnixNano())
}

func (s *RedisSlidingWindowLimiterTestSuite) TestLimit_ExceedThreshold() {
	t := s.T()
	ctx := t.Context()
	key := s.getUniqueKey("exceed_threshold")
	limiter := NewRedisSlidingWindowLimiter(s.rdb, time.Second, 5)

	for i := 0; i < 5; i++ {
		d, err := limiter.Limit(ctx, key)
		require.NoError(t, err)
		assert.True(t, d.Allowed, fmt.Sprintf("第%d个请求不应该被限流", i+1))
	}

	d, err := limiter.Limit(ctx, key)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "第6个请求应该被限流")
	assert.Equal(t, 5, d.Limit)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Second)

	cnt, err := s.rdb.ZCard(ctx, limiter.getCountKey(key)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(5), cnt, "被限流的请求不计入窗口")

	s.rdb.Del(ctx, limiter.getCountKey(key))
}

func (s *RedisSlidingWindowLimiterTestSuite) TestLimit_WindowSliding() {
	t := s.T()
	ctx := t.Context()
	key := s.getUniqueKey("window_sliding")
	limiter := NewRedisSlidingWindowLimiter(s.rdb, 100*time.Millisecond, 2)

	for i := 0; i < 2; i++ {
		d, err := limiter.Limit(ctx, key)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := limiter.Limit(ctx, key)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// 等待窗口滑动(100ms窗口 + 额外余量)
	time.Sleep(150 * time.Millisecond)

	d, err = limiter.Limit(ctx, key)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "窗口滑动后不应该被限流")

	s.rdb.Del(ctx, limiter.getCountKey(key))
}
