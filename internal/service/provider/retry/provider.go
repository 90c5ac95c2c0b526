package retry

import (
	"context"
	"time"

	pkgretry "gitee.com/flycash/notification-governance/internal/pkg/retry"
	"gitee.com/flycash/notification-governance/internal/service/provider"
	"github.com/gotomicro/ego/core/elog"
)

// Provider 传输层失败时按退避策略重试，供应商明确返回的 FAILED 不重试
type Provider struct {
	provider provider.Provider
	cfg      pkgretry.Config
	logger   *elog.Component
}

func NewProvider(p provider.Provider, cfg pkgretry.Config) (*Provider, error) {
	// 提前校验配置
	if _, err := pkgretry.NewRetry(cfg); err != nil {
		return nil, err
	}
	return &Provider{
		provider: p,
		cfg:      cfg,
		logger:   elog.DefaultLogger,
	}, nil
}

func (p *Provider) Send(ctx context.Context, req provider.SendRequest) (provider.SendResult, error) {
	strategy, err := pkgretry.NewRetry(p.cfg)
	if err != nil {
		return provider.SendResult{}, err
	}
	for {
		res, err1 := p.provider.Send(ctx, req)
		if err1 == nil {
			return res, nil
		}
		interval, ok := strategy.Next()
		if !ok {
			return res, err1
		}
		p.logger.Warn("供应商发送失败，准备重试",
			elog.String("dispatchId", req.DispatchID),
			elog.Any("interval", interval),
			elog.FieldErr(err1))
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res, err1
		case <-timer.C:
		}
	}
}
