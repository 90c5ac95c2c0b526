package throttle

import (
	"context"
	"fmt"

	"gitee.com/flycash/notification-governance/internal/service/provider"
	"golang.org/x/time/rate"
)

// Provider 限制对供应商的调用速率，超出时排队等待直到 ctx 结束
type Provider struct {
	provider provider.Provider
	limiter  *rate.Limiter
}

func NewProvider(p provider.Provider, qps float64, burst int) *Provider {
	if burst <= 0 {
		burst = 1
	}
	return &Provider{
		provider: p,
		limiter:  rate.NewLimiter(rate.Limit(qps), burst),
	}
}

func (p *Provider) Send(ctx context.Context, req provider.SendRequest) (provider.SendResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return provider.SendResult{}, fmt.Errorf("%w: 等待发送配额失败: %w", provider.ErrSendFailed, err)
	}
	return p.provider.Send(ctx, req)
}
