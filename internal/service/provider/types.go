package provider

import (
	"context"
	"errors"

	"gitee.com/flycash/notification-governance/internal/domain"
)

var ErrSendFailed = errors.New("发送失败")

// SendRequest 交给供应商的一次发送
type SendRequest struct {
	Channel    domain.Channel
	Address    string // 邮箱或者渠道用户ID
	TemplateID string // 渠道侧模板ID
	Payload    string
	DispatchID string
}

// SendResult 供应商返回，RedactedResponse 已经脱敏
type SendResult struct {
	ProviderRequestID string
	ProviderStatus    domain.ProviderStatus
	RedactedResponse  map[string]any
	ErrorCode         string
}

// Provider 单个渠道的外发适配器。返回 error 表示传输层失败，可以重试；
// 供应商明确拒绝时返回 FAILED 结果而不是 error
//
//go:generate mockgen -source=./types.go -destination=./mocks/provider.mock.go -package=providermocks Provider
type Provider interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
