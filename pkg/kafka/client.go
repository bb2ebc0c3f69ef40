// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"

	"devtone-chat-go/internal/config"
	"devtone-chat-go/pkg/events"
	"devtone-chat-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceChatEvent 将一条聊天中继事件发送到 Kafka。
// 生产者未初始化时直接跳过（本地开发或测试环境），
// 发送失败由调用方记录日志，不影响主流程。
func ProduceChatEvent(evt events.ChatRelayEvent) error {
	if producer == nil {
		return nil
	}

	evtBytes, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	return producer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(evt.SessionID),
			Value: evtBytes,
		},
	)
}
