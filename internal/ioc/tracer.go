package ioc

import (
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/core/elog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "notification-governance"

// InitZipkinTracer 未配置 endpoint 时仍然返回 TracerProvider，只是不导出
func InitZipkinTracer() *trace.TracerProvider {
	type Config struct {
		Endpoint string
	}
	var cfg Config
	if err := econf.UnmarshalKey("trace.zipkin", &cfg); err != nil {
		panic(err)
	}
	opts := []trace.TracerProviderOption{
		trace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	}
	if cfg.Endpoint != "" {
		exporter, err := zipkin.New(cfg.Endpoint)
		if err != nil {
			panic(err)
		}
		opts = append(opts, trace.WithBatcher(exporter))
	} else {
		elog.DefaultLogger.Info("未配置 zipkin，链路数据不导出")
	}
	tp := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp
}
