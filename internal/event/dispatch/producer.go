package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ecodeclub/mq-api"
)

//go:generate mockgen -source=./producer.go -package=evtmocks -destination=../mocks/dispatch_status_event_producer.mock.go StatusEventProducer
type StatusEventProducer interface {
	Produce(ctx context.Context, evt StatusEvent) error
}

type Producer struct {
	producer mq.Producer
}

func NewProducer(producer mq.Producer) *Producer {
	return &Producer{producer: producer}
}

func (p *Producer) Produce(ctx context.Context, evt StatusEvent) error {
	val, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化topic的消息失败 %w", err)
	}
	// 同一条发送记录的事件落在同一个分区，保证顺序
	_, err = p.producer.Produce(ctx, &mq.Message{
		Topic: StatusEventTopic,
		Key:   []byte(evt.DispatchID),
		Value: val,
	})
	return err
}

// NopProducer 未配置消息队列时使用
type NopProducer struct{}

func (NopProducer) Produce(context.Context, StatusEvent) error {
	return nil
}
