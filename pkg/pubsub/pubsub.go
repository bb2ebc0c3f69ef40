// Package pubsub 基于 Redis Pub/Sub 提供会话级的发布/订阅通道。
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"devtone-chat-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// SessionTopic 返回承载消息 insert/update 事件的通道名。
func SessionTopic(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// TypingTopic 返回承载输入指示器临时事件的通道名。
func TypingTopic(sessionID string) string {
	return fmt.Sprintf("typing:%s", sessionID)
}

// CloseTopic 返回承载关闭/重开广播的通道名。
func CloseTopic(sessionID string) string {
	return fmt.Sprintf("session_close:%s", sessionID)
}

// Broker 封装 Redis Pub/Sub，负责事件的序列化与通道管理。
// 所有通道都是尽力而为的广播：没有订阅者时事件直接丢弃。
type Broker struct {
	rdb *redis.Client
}

// NewBroker 创建一个新的 Broker 实例。
func NewBroker(rdb *redis.Client) *Broker {
	return &Broker{rdb: rdb}
}

// Publish 将 payload 序列化为 JSON 后发布到指定通道。
func (b *Broker) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event for topic %s: %w", topic, err)
	}
	if err := b.rdb.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Subscribe 订阅一个通道，返回原始事件字节的只读 channel 和取消函数。
// 取消函数在任何退出路径上都必须被调用，否则转发 goroutine 会泄漏。
func (b *Broker) Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error) {
	ps := b.rdb.Subscribe(ctx, topic)
	// 确认订阅真正建立，失败时让调用方走降级路径
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- []byte(msg.Payload):
			default:
				// 订阅端消费过慢时丢弃事件，订阅端依赖重放接口兜底
				log.Warnf("订阅通道 %s 的缓冲已满，丢弃一条事件", topic)
			}
		}
	}()

	cancel := func() {
		if err := ps.Close(); err != nil {
			log.Warnf("关闭通道 %s 的订阅失败: %v", topic, err)
		}
	}
	return out, cancel, nil
}
