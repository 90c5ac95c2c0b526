package ioc

import (
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	pkgretry "gitee.com/flycash/notification-governance/internal/pkg/retry"
	"gitee.com/flycash/notification-governance/internal/service/provider"
	"gitee.com/flycash/notification-governance/internal/service/provider/console"
	"gitee.com/flycash/notification-governance/internal/service/provider/httpapi"
	"gitee.com/flycash/notification-governance/internal/service/provider/metrics"
	"gitee.com/flycash/notification-governance/internal/service/provider/retry"
	"gitee.com/flycash/notification-governance/internal/service/provider/throttle"
	"gitee.com/flycash/notification-governance/internal/service/provider/tracing"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/core/elog"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	providerModeDev  = "dev"
	providerModeHTTP = "http"
)

type channelConfig struct {
	Enabled    bool
	Endpoint   string
	Credential string
}

// InitProviderDispatcher 按配置为每个启用的渠道组装供应商。
// 调用链：tracing -> metrics -> throttle -> retry -> 实际供应商
func InitProviderDispatcher() *provider.Dispatcher {
	type Config struct {
		Mode           string
		TimeoutSeconds int
		QPS            float64
		Burst          int
		Retry          *pkgretry.Config
		Email          channelConfig
		IM             channelConfig
	}
	var cfg Config
	if err := econf.UnmarshalKey("notify.provider", &cfg); err != nil {
		panic(err)
	}
	if cfg.Mode == "" {
		cfg.Mode = providerModeDev
	}
	retryCfg := pkgretry.DefaultConfig()
	if cfg.Retry != nil {
		retryCfg = *cfg.Retry
	}
	// 渠道开关与供应商地址分开配置，方便临时关闭某个渠道
	cfg.Email.Enabled = econf.GetBool("notify.channels.email.enabled")
	cfg.IM.Enabled = econf.GetBool("notify.channels.im.enabled")

	providers := make(map[domain.Channel]provider.Provider, 2)
	for channel, cc := range map[domain.Channel]channelConfig{
		domain.ChannelEmail: cfg.Email,
		domain.ChannelIM:    cfg.IM,
	} {
		if !cc.Enabled {
			elog.DefaultLogger.Info("渠道未启用", elog.String("channel", channel.String()))
			continue
		}
		var base provider.Provider
		switch cfg.Mode {
		case providerModeHTTP:
			base = httpapi.NewProvider(httpapi.Config{
				Endpoint:   cc.Endpoint,
				Credential: cc.Credential,
				Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
			})
		case providerModeDev:
			base = console.NewProvider()
		default:
			panic("未知的供应商模式: " + cfg.Mode)
		}
		retried, err := retry.NewProvider(base, retryCfg)
		if err != nil {
			panic(err)
		}
		var p provider.Provider = retried
		if cfg.QPS > 0 {
			p = throttle.NewProvider(p, cfg.QPS, cfg.Burst)
		}
		p = metrics.NewProvider(cfg.Mode+"-"+channel.String(), p, prometheus.DefaultRegisterer)
		providers[channel] = tracing.NewProvider(p)
	}
	return provider.NewDispatcher(providers)
}
