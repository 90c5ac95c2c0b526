package ioc

import (
	dispatchsvc "gitee.com/flycash/notification-governance/internal/service/dispatch"
	bindingweb "gitee.com/flycash/notification-governance/internal/web/binding"
	dispatchweb "gitee.com/flycash/notification-governance/internal/web/dispatch"
	exportweb "gitee.com/flycash/notification-governance/internal/web/export"
	"gitee.com/flycash/notification-governance/internal/web/middleware/jwt"
	"gitee.com/flycash/notification-governance/internal/web/middleware/observability"
	templateweb "gitee.com/flycash/notification-governance/internal/web/template"
	"gitee.com/flycash/notification-governance/internal/web/webhook"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/server/egin"
	"github.com/prometheus/client_golang/prometheus"
)

func InitJwtAuth() *jwt.JwtAuth {
	key := econf.GetString("jwt.key")
	if key == "" {
		panic("jwt.key 未配置")
	}
	return jwt.NewJwtAuth(key)
}

func InitWebhookHandler(svc dispatchsvc.Service) *webhook.Handler {
	return webhook.NewHandler(svc, econf.GetString("notify.webhook.secret"))
}

// InitWebServer 所有接口挂在 /api/v1 下，公开接口不经过身份认证
func InitWebServer(
	auth *jwt.JwtAuth,
	bindingHdl *bindingweb.Handler,
	dispatchHdl *dispatchweb.Handler,
	templateHdl *templateweb.Handler,
	exportHdl *exportweb.Handler,
	webhookHdl *webhook.Handler,
) *egin.Component {
	server := egin.Load("server.http").Build()
	server.Use(observability.New(prometheus.DefaultRegisterer).Build())

	api := server.Group("/api/v1")
	bindingHdl.PublicRoutes(api)
	exportHdl.PublicRoutes(api)
	webhookHdl.PublicRoutes(api)

	private := api.Group("")
	private.Use(jwt.NewBuilder(auth).Build())
	bindingHdl.PrivateRoutes(private)
	dispatchHdl.PrivateRoutes(private)
	templateHdl.PrivateRoutes(private)
	exportHdl.PrivateRoutes(private)
	return server
}
