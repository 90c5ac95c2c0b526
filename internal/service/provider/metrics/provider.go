// Package metrics 为供应商实现添加指标收集的装饰器
package metrics

import (
	"context"
	"time"

	"gitee.com/flycash/notification-governance/internal/service/provider"
	"github.com/prometheus/client_golang/prometheus"
)

// Provider 为供应商实现添加指标收集的装饰器
type Provider struct {
	provider            provider.Provider
	sendDurationSummary *prometheus.SummaryVec
	sendCounter         *prometheus.CounterVec
	sendStatusCounter   *prometheus.CounterVec
	name                string
}

// NewProvider 创建一个新的带有指标收集的供应商。同一个 Registerer 上重复创建会复用已注册的指标
func NewProvider(name string, p provider.Provider, reg prometheus.Registerer) *Provider {
	sendDurationSummary := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "provider_send_duration_seconds",
			Help:       "供应商发送通知耗时统计（秒）",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001},
			MaxAge:     time.Minute * 5,
		},
		[]string{"provider", "channel", "status"},
	)

	sendCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_send_total",
			Help: "供应商发送通知总数",
		},
		[]string{"provider", "channel"},
	)

	sendStatusCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_send_status_total",
			Help: "供应商发送通知状态统计",
		},
		[]string{"provider", "channel", "status"},
	)

	return &Provider{
		provider:            p,
		sendDurationSummary: register(reg, sendDurationSummary),
		sendCounter:         register(reg, sendCounter),
		sendStatusCounter:   register(reg, sendStatusCounter),
		name:                name,
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(T)
		}
		panic(err)
	}
	return c
}

// Send 发送通知并记录指标
func (p *Provider) Send(ctx context.Context, req provider.SendRequest) (provider.SendResult, error) {
	startTime := time.Now()
	channel := req.Channel.String()

	p.sendCounter.WithLabelValues(p.name, channel).Inc()

	res, err := p.provider.Send(ctx, req)

	status := string(res.ProviderStatus)
	if err != nil {
		status = "ERROR"
	}
	p.sendStatusCounter.WithLabelValues(p.name, channel, status).Inc()
	p.sendDurationSummary.WithLabelValues(p.name, channel, status).Observe(time.Since(startTime).Seconds())
	return res, err
}
