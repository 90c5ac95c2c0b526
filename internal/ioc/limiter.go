package ioc

import (
	"time"

	"gitee.com/flycash/notification-governance/internal/pkg/ratelimit"
	"github.com/gotomicro/ego/core/econf"
	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxRequests   = 10
	defaultWindowSeconds = 60
)

// InitLimiter 多实例部署必须使用 redis，local 只在单实例或开发环境使用
func InitLimiter(cmd redis.Cmdable) ratelimit.Limiter {
	type Config struct {
		Backend       string
		MaxRequests   int
		WindowSeconds int
	}
	var cfg Config
	if err := econf.UnmarshalKey("notify.ratelimit", &cfg); err != nil {
		panic(err)
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = defaultMaxRequests
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = defaultWindowSeconds
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second
	if cfg.Backend == "local" {
		return ratelimit.NewLocalSlidingWindowLimiter(window, cfg.MaxRequests)
	}
	return ratelimit.NewRedisSlidingWindowLimiter(cmd, window, cfg.MaxRequests)
}
