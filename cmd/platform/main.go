package main

import (
	"context"
	"time"

	"gitee.com/flycash/notification-governance/cmd/platform/ioc"
	prodioc "gitee.com/flycash/notification-governance/internal/ioc"
	"github.com/gotomicro/ego"
	"github.com/gotomicro/ego/core/elog"
	"github.com/gotomicro/ego/server"
	"github.com/gotomicro/ego/server/egovernor"
)

func main() {
	egoApp := ego.New()
	app := ioc.InitApp()
	prodioc.LoadTemplateSeeds(context.Background(), app.Templates)

	if err := egoApp.Serve(
		egovernor.Load("server.governor").Build(),
		func() server.Server {
			return app.Web
		}(),
	).Run(); err != nil {
		elog.Panic("startup", elog.FieldErr(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Tracer.Shutdown(ctx); err != nil {
		elog.Error("Shutdown zipkinTracer", elog.FieldErr(err))
	}
}
