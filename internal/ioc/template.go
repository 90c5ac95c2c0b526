package ioc

import (
	"context"
	"os"
	"time"

	"gitee.com/flycash/notification-governance/internal/repository/cache"
	"gitee.com/flycash/notification-governance/internal/repository/cache/local"
	"gitee.com/flycash/notification-governance/internal/service/template"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/core/elog"
	ca "github.com/patrickmn/go-cache"
)

const (
	templateCacheExpiration = 10 * time.Minute
	templateCacheCleanup    = 20 * time.Minute
)

func InitTemplateCache() cache.TemplateCache {
	return local.NewTemplateCache(ca.New(templateCacheExpiration, templateCacheCleanup), templateCacheExpiration)
}

// LoadTemplateSeeds 启动时加载模板种子文件，未配置时跳过
func LoadTemplateSeeds(ctx context.Context, registry template.Registry) {
	path := econf.GetString("notify.templates.seedFile")
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	n, err := registry.LoadSeeds(ctx, f)
	if err != nil {
		panic(err)
	}
	elog.DefaultLogger.Info("模板种子加载完成", elog.String("file", path), elog.Int("count", n))
}
