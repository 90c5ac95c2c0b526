package ioc

import (
	"os"

	"gitee.com/flycash/notification-governance/internal/repository"
	"gitee.com/flycash/notification-governance/internal/service/export"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/core/elog"
)

// InitExportBuilder 私钥可以直接写在配置里，也可以给出文件路径
func InitExportBuilder(bindings repository.ChannelBindingRepository, dispatches repository.DispatchRepository) *export.Builder {
	type Config struct {
		Enabled        bool
		PrivateKeyPEM  string
		PrivateKeyFile string
	}
	var cfg Config
	if err := econf.UnmarshalKey("notify.export.signature", &cfg); err != nil {
		panic(err)
	}
	var signer *export.Signer
	if cfg.Enabled {
		key := []byte(cfg.PrivateKeyPEM)
		if len(key) == 0 && cfg.PrivateKeyFile != "" {
			data, err := os.ReadFile(cfg.PrivateKeyFile)
			if err != nil {
				panic(err)
			}
			key = data
		}
		var err error
		signer, err = export.NewSigner(key)
		if err != nil {
			panic(err)
		}
	} else {
		elog.DefaultLogger.Info("导出包签名未启用")
	}
	return export.NewBuilder(tenantID(), bindings, dispatches, signer)
}
