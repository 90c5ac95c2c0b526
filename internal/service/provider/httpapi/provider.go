package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/service/provider"
	"github.com/go-resty/resty/v2"
	"github.com/gotomicro/ego/core/elog"
)

const credentialHeader = "X-Provider-Credential"

type Config struct {
	Endpoint   string
	Credential string
	Timeout    time.Duration
}

// Provider 通过 HTTP JSON 接口把消息交给外部供应商（邮件网关或者 IM 平台）
type Provider struct {
	client *resty.Client
	cfg    Config
	logger *elog.Component
}

func NewProvider(cfg Config) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader(credentialHeader, cfg.Credential)
	return &Provider{
		client: client,
		cfg:    cfg,
		logger: elog.DefaultLogger,
	}
}

type sendBody struct {
	Channel    string `json:"channel"`
	To         string `json:"to"`
	TemplateID string `json:"templateId"`
	Payload    string `json:"payload"`
	DispatchID string `json:"dispatchId"`
}

// Send 5xx 与网络错误返回 error 以便重试，4xx 视为供应商拒绝，返回 FAILED
func (p *Provider) Send(ctx context.Context, req provider.SendRequest) (provider.SendResult, error) {
	var body map[string]any
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(sendBody{
			Channel:    req.Channel.String(),
			To:         req.Address,
			TemplateID: req.TemplateID,
			Payload:    req.Payload,
			DispatchID: req.DispatchID,
		}).
		SetResult(&body).
		SetError(&body).
		Post(p.cfg.Endpoint)
	if err != nil {
		return provider.SendResult{ErrorCode: "TRANSPORT_ERROR"}, fmt.Errorf("%w: %w", provider.ErrSendFailed, err)
	}

	redacted := provider.Redact(body)
	if redacted == nil {
		redacted = map[string]any{}
	}
	redacted["httpStatus"] = resp.StatusCode()

	switch {
	case resp.StatusCode() >= http.StatusInternalServerError:
		return provider.SendResult{
			ProviderStatus:   domain.ProviderStatusFailed,
			RedactedResponse: redacted,
			ErrorCode:        fmt.Sprintf("HTTP_%d", resp.StatusCode()),
		}, fmt.Errorf("%w: status=%d", provider.ErrSendFailed, resp.StatusCode())
	case resp.StatusCode() >= http.StatusBadRequest:
		return provider.SendResult{
			ProviderStatus:   domain.ProviderStatusFailed,
			RedactedResponse: redacted,
			ErrorCode:        errorCode(body, resp.StatusCode()),
		}, nil
	}

	status := domain.ProviderStatusSent
	if s, _ := body["status"].(string); domain.ProviderStatus(s) == domain.ProviderStatusDelivered {
		status = domain.ProviderStatusDelivered
	}
	return provider.SendResult{
		ProviderRequestID: requestID(body),
		ProviderStatus:    status,
		RedactedResponse:  redacted,
	}, nil
}

func requestID(body map[string]any) string {
	for _, key := range []string{"requestId", "messageId", "id"} {
		if v, ok := body[key]; ok {
			return fmt.Sprint(v)
		}
	}
	return ""
}

func errorCode(body map[string]any, status int) string {
	if code, ok := body["code"].(string); ok && code != "" {
		return code
	}
	return fmt.Sprintf("HTTP_%d", status)
}
