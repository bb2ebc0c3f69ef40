package service

import (
	"context"

	"devtone-chat-go/internal/model"
	"devtone-chat-go/pkg/pubsub"
)

// TypingService 接口定义了输入指示器的广播操作。
// 事件不做持久化，不保证送达与顺序，订阅端依赖超时自动清除。
type TypingService interface {
	NotifyTyping(ctx context.Context, sessionID string, isUser, isTyping bool) error
}

// typingService 是 TypingService 接口的实现。
type typingService struct {
	broker EventBroker
}

// NewTypingService 创建一个新的 TypingService 实例。
func NewTypingService(broker EventBroker) TypingService {
	return &typingService{broker: broker}
}

// NotifyTyping 在会话的 typing 通道上发布一条临时事件。
func (s *typingService) NotifyTyping(ctx context.Context, sessionID string, isUser, isTyping bool) error {
	event := model.TypingEvent{
		SessionID: sessionID,
		IsUser:    isUser,
		IsTyping:  isTyping,
	}
	return s.broker.Publish(ctx, pubsub.TypingTopic(sessionID), event)
}
