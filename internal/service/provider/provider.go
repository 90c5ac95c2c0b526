package provider

import (
	"context"
	"fmt"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/errs"
)

// Dispatcher 按渠道分发，对外伪装成 Provider，作为统一入口
type Dispatcher struct {
	providers map[domain.Channel]Provider
}

// NewDispatcher 未出现在 providers 中的渠道视为未启用
func NewDispatcher(providers map[domain.Channel]Provider) *Dispatcher {
	return &Dispatcher{providers: providers}
}

func (d *Dispatcher) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	p, ok := d.providers[req.Channel]
	if !ok {
		return SendResult{}, fmt.Errorf("%w: channel=%s", errs.ErrChannelDisabled, req.Channel)
	}
	return p.Send(ctx, req)
}

// Enabled 渠道是否启用
func (d *Dispatcher) Enabled(channel domain.Channel) bool {
	_, ok := d.providers[channel]
	return ok
}
