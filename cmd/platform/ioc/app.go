package ioc

import (
	"gitee.com/flycash/notification-governance/internal/service/template"
	"github.com/gotomicro/ego/server/egin"
	"go.opentelemetry.io/otel/sdk/trace"
)

type App struct {
	Web       *egin.Component
	Tracer    *trace.TracerProvider
	Templates template.Registry
}
