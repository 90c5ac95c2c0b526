package ioc

import (
	"time"

	"gitee.com/flycash/notification-governance/internal/service/binding"
	"gitee.com/flycash/notification-governance/internal/service/dispatch"
	"gitee.com/flycash/notification-governance/internal/service/template"
	"github.com/gotomicro/ego/core/econf"
)

const defaultTokenTTLMinutes = 15

func tenantID() string {
	id := econf.GetString("notify.tenantId")
	if id == "" {
		panic("notify.tenantId 未配置")
	}
	return id
}

// IsProduction 生产环境只能使用 LOCKED/APPROVED 模板
func IsProduction() bool {
	return econf.GetString("notify.env") == "production"
}

func InitBindingConfig() binding.Config {
	type Config struct {
		TokenTTLMinutes int
	}
	var cfg Config
	if err := econf.UnmarshalKey("notify.binding", &cfg); err != nil {
		panic(err)
	}
	if cfg.TokenTTLMinutes <= 0 {
		cfg.TokenTTLMinutes = defaultTokenTTLMinutes
	}
	return binding.Config{
		TenantID: tenantID(),
		TokenTTL: time.Duration(cfg.TokenTTLMinutes) * time.Minute,
	}
}

func InitDispatchConfig() dispatch.Config {
	type Config struct {
		WindowMinutes   int
		DefaultLanguage string
	}
	var cfg Config
	if err := econf.UnmarshalKey("notify.idempotency", &cfg); err != nil {
		panic(err)
	}
	return dispatch.Config{
		TenantID:        tenantID(),
		IMAppID:         econf.GetString("notify.channels.im.appId"),
		WindowMinutes:   cfg.WindowMinutes,
		DefaultLanguage: cfg.DefaultLanguage,
	}
}

func InitTemplateConfig() template.Config {
	return template.Config{Production: IsProduction()}
}

// InitPolicy 未配置的项使用 template 包的默认值
func InitPolicy() *template.Policy {
	type Config struct {
		Languages        []string
		MaxPayloadLength int
		AllowedHosts     []string
	}
	var cfg Config
	if err := econf.UnmarshalKey("notify.policy", &cfg); err != nil {
		panic(err)
	}
	return template.NewPolicy(template.PolicyConfig{
		Languages:        cfg.Languages,
		MaxPayloadLength: cfg.MaxPayloadLength,
		AllowedHosts:     cfg.AllowedHosts,
	})
}
