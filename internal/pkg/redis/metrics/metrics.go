package metrics

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	successStatus = "success"
	errorStatus   = "error"
)

var _ redis.Hook = (*Hook)(nil)

// Hook 实现了 redis.Hook 接口，为限流等 Redis 操作添加指标收集
type Hook struct {
	commandCounter    *prometheus.CounterVec
	commandDuration   *prometheus.SummaryVec
	pipelineCounter   *prometheus.CounterVec
	pipelineDuration  prometheus.Summary
	connectionCounter *prometheus.CounterVec
}

// NewMetricsHook 创建一个新的 Redis 指标收集钩子，指标注册到 reg
func NewMetricsHook(reg prometheus.Registerer, namespace string) *Hook {
	objectives := map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001}
	h := &Hook{
		commandCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_commands_total",
			Help:      "Total number of Redis commands executed",
		}, []string{"command", "status"}),
		commandDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace:  namespace,
			Name:       "redis_command_duration_seconds",
			Help:       "Redis command execution time in seconds",
			Objectives: objectives,
		}, []string{"command"}),
		pipelineCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_pipeline_total",
			Help:      "Total number of Redis pipeline executions",
		}, []string{"status"}),
		pipelineDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace:  namespace,
			Name:       "redis_pipeline_duration_seconds",
			Help:       "Redis pipeline execution time in seconds",
			Objectives: objectives,
		}),
		connectionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_connections_total",
			Help:      "Total number of Redis connections created",
		}, []string{"status"}),
	}
	reg.MustRegister(h.commandCounter, h.commandDuration, h.pipelineCounter, h.pipelineDuration, h.connectionCounter)
	return h
}

// ProcessHook 处理Redis命令的指标收集
func (h *Hook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		startTime := time.Now()
		err := next(ctx, cmd)
		h.commandDuration.WithLabelValues(cmd.Name()).Observe(time.Since(startTime).Seconds())
		h.commandCounter.WithLabelValues(cmd.Name(), status(err)).Inc()
		return err
	}
}

// ProcessPipelineHook 处理Redis管道命令的指标收集
func (h *Hook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if len(cmds) == 0 {
			return next(ctx, cmds)
		}
		startTime := time.Now()
		err := next(ctx, cmds)
		h.pipelineDuration.Observe(time.Since(startTime).Seconds())

		st := status(err)
		for _, cmd := range cmds {
			if s := status(cmd.Err()); s == errorStatus {
				st = s
				break
			}
		}
		h.pipelineCounter.WithLabelValues(st).Inc()
		return err
	}
}

// DialHook 处理Redis连接的指标收集
func (h *Hook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		h.connectionCounter.WithLabelValues(status(err)).Inc()
		return conn, err
	}
}

// redis.Nil 表示键不存在，不算错误
func status(err error) string {
	if err != nil && !errors.Is(err, redis.Nil) {
		return errorStatus
	}
	return successStatus
}

// WithMetrics 为Redis客户端添加指标收集功能
func WithMetrics(client *redis.Client, reg prometheus.Registerer, namespace string) *redis.Client {
	client.AddHook(NewMetricsHook(reg, namespace))
	return client
}
