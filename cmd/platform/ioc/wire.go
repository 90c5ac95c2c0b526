//go:build wireinject

package ioc

import (
	"gitee.com/flycash/notification-governance/internal/ioc"
	"gitee.com/flycash/notification-governance/internal/repository"
	"gitee.com/flycash/notification-governance/internal/repository/dao"
	bindingsvc "gitee.com/flycash/notification-governance/internal/service/binding"
	dispatchsvc "gitee.com/flycash/notification-governance/internal/service/dispatch"
	exportsvc "gitee.com/flycash/notification-governance/internal/service/export"
	"gitee.com/flycash/notification-governance/internal/service/taxonomy"
	templatesvc "gitee.com/flycash/notification-governance/internal/service/template"
	bindingweb "gitee.com/flycash/notification-governance/internal/web/binding"
	dispatchweb "gitee.com/flycash/notification-governance/internal/web/dispatch"
	exportweb "gitee.com/flycash/notification-governance/internal/web/export"
	templateweb "gitee.com/flycash/notification-governance/internal/web/template"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
)

var (
	BaseSet = wire.NewSet(
		ioc.InitDB,
		ioc.InitRedisClient,
		ioc.InitIDGenerator,
		ioc.InitMQ,
		ioc.InitZipkinTracer,
		wire.Bind(new(redis.Cmdable), new(*redis.Client)),
	)
	bindingSvcSet = wire.NewSet(
		ioc.InitBindingConfig,
		bindingsvc.NewService,
		repository.NewChannelBindingRepository,
		dao.NewChannelBindingDAO,
	)
	templateSvcSet = wire.NewSet(
		ioc.InitTemplateConfig,
		ioc.InitPolicy,
		ioc.InitTemplateCache,
		taxonomy.NewRegistry,
		templatesvc.NewRegistry,
		templatesvc.NewRenderer,
		repository.NewTemplateRepository,
		dao.NewTemplateEntryDAO,
	)
	dispatchSvcSet = wire.NewSet(
		ioc.InitDispatchConfig,
		ioc.InitGuard,
		ioc.InitProviderDispatcher,
		ioc.InitStatusEventProducer,
		dispatchsvc.NewService,
		repository.NewDispatchRepository,
		dao.NewDispatchDAO,
	)
	exportSvcSet = wire.NewSet(
		ioc.InitLimiter,
		ioc.InitExportBuilder,
		exportsvc.NewService,
		repository.NewExportAuditRepository,
		dao.NewExportAuditDAO,
	)
	webSet = wire.NewSet(
		ioc.InitJwtAuth,
		ioc.InitWebhookHandler,
		ioc.InitWebServer,
		bindingweb.NewHandler,
		dispatchweb.NewHandler,
		templateweb.NewHandler,
		exportweb.NewHandler,
	)
)

func InitApp() *App {
	wire.Build(
		BaseSet,
		bindingSvcSet,
		templateSvcSet,
		dispatchSvcSet,
		exportSvcSet,
		webSet,
		wire.Struct(new(App), "*"),
	)
	return new(App)
}
