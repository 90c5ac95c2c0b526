package ioc

import (
	"time"

	"github.com/gotomicro/ego/core/econf"
	"github.com/sony/sonyflake"
)

func InitIDGenerator() *sonyflake.Sonyflake {
	type Config struct {
		MachineID uint16
	}
	var cfg Config
	if err := econf.UnmarshalKey("idGenerator", &cfg); err != nil {
		panic(err)
	}
	settings := sonyflake.Settings{
		StartTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	// 未配置时使用 sonyflake 默认的按私有 IP 计算
	if cfg.MachineID != 0 {
		settings.MachineID = func() (uint16, error) {
			return cfg.MachineID, nil
		}
	}
	sf := sonyflake.NewSonyflake(settings)
	if sf == nil {
		panic("初始化 sonyflake 失败")
	}
	return sf
}
