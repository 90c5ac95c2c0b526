package ratelimit

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	//go:embed lua/slide_window.lua
	slidingWindowScript string

	_ Limiter = (*RedisSlidingWindowLimiter)(nil)
)

type RedisSlidingWindowLimiter struct {
	cmd       redis.Cmdable
	interval  time.Duration
	rate      int
	keyPrefix string
	now       func() time.Time
}

// NewRedisSlidingWindowLimiter 创建一个基于Redis的滑动窗口限流器
func NewRedisSlidingWindowLimiter(cmd redis.Cmdable, interval time.Duration, rate int) *RedisSlidingWindowLimiter {
	return &RedisSlidingWindowLimiter{
		cmd:       cmd,
		interval:  interval,
		rate:      rate,
		keyPrefix: "ratelimit:",
		now:       time.Now,
	}
}

// Limit 判断是否应该限流
func (r *RedisSlidingWindowLimiter) Limit(ctx context.Context, key string) (Decision, error) {
	member, err := uuid.NewV4()
	if err != nil {
		return Decision{}, err
	}
	res, err := r.cmd.Eval(ctx, slidingWindowScript,
		[]string{r.getCountKey(key)},
		r.interval.Milliseconds(),
		r.rate,
		r.now().UnixMilli(),
		member.String(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("执行限流脚本失败: %w", err)
	}
	const resultLen = 3
	if len(res) != resultLen {
		return Decision{}, fmt.Errorf("限流脚本返回值非法: %v", res)
	}
	return Decision{
		Allowed:    res[0] == 0,
		Limit:      r.rate,
		Window:     r.interval,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// getCountKey 获取请求计数的Redis键
func (r *RedisSlidingWindowLimiter) getCountKey(key string) string {
	return fmt.Sprintf("%scount:%s", r.keyPrefix, key)
}
