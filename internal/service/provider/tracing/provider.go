package tracing

import (
	"context"

	"gitee.com/flycash/notification-governance/internal/service/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Provider 为供应商实现添加链路追踪的装饰器
type Provider struct {
	provider provider.Provider
	tracer   trace.Tracer
}

func NewProvider(p provider.Provider) *Provider {
	return &Provider{
		provider: p,
		tracer:   otel.Tracer("notification-governance/provider"),
	}
}

func (p *Provider) Send(ctx context.Context, req provider.SendRequest) (provider.SendResult, error) {
	// 不记录收件地址和内容
	ctx, span := p.tracer.Start(ctx, "Provider.Send",
		trace.WithAttributes(
			attribute.String("dispatch.id", req.DispatchID),
			attribute.String("dispatch.channel", req.Channel.String()),
			attribute.String("dispatch.templateId", req.TemplateID),
		))
	defer span.End()

	res, err := p.provider.Send(ctx, req)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.String("provider.requestId", res.ProviderRequestID),
			attribute.String("provider.status", string(res.ProviderStatus)),
		)
		if res.ErrorCode != "" {
			span.SetStatus(codes.Error, res.ErrorCode)
		}
	}
	return res, err
}
