package ioc

import (
	"gitee.com/flycash/notification-governance/internal/pkg/redis/metrics"
	"github.com/gotomicro/ego/core/econf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func InitRedisClient() *redis.Client {
	type Config struct {
		Addr string
	}
	var cfg Config
	err := econf.UnmarshalKey("redis", &cfg)
	if err != nil {
		panic(err)
	}
	cmd := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	return metrics.WithMetrics(cmd, prometheus.DefaultRegisterer, "notification_governance")
}
