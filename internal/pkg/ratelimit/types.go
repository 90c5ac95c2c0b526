package ratelimit

import (
	"context"
	"time"
)

// Decision 一次限流判断的结果
type Decision struct {
	Allowed bool
	Limit   int
	Window  time.Duration
	// RetryAfter 被限流时，窗口内最早的请求过期所需的时间
	RetryAfter time.Duration
	Remaining  int
}

//go:generate mockgen -source=./types.go -package=limitmocks -destination=./mocks/limiter.mock.go Limiter
type Limiter interface {
	// Limit 判断是否应该限流，未被限流时本次请求计入窗口
	Limit(ctx context.Context, key string) (Decision, error)
}
