package ioc

import (
	"context"

	dispatchevt "gitee.com/flycash/notification-governance/internal/event/dispatch"
	"github.com/ecodeclub/mq-api"
	"github.com/ecodeclub/mq-api/memory"
	"github.com/gotomicro/ego/core/econf"
)

// InitMQ 进程内消息队列，下游订阅状态事件
func InitMQ() mq.MQ {
	type Config struct {
		Partitions int
	}
	var cfg Config
	if err := econf.UnmarshalKey("mq", &cfg); err != nil {
		panic(err)
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 1
	}
	q := memory.NewMQ()
	if err := q.CreateTopic(context.Background(), dispatchevt.StatusEventTopic, cfg.Partitions); err != nil {
		panic(err)
	}
	return q
}

func InitStatusEventProducer(q mq.MQ) dispatchevt.StatusEventProducer {
	producer, err := q.Producer(dispatchevt.StatusEventTopic)
	if err != nil {
		panic(err)
	}
	return dispatchevt.NewProducer(producer)
}
