package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"devtone-chat-go/internal/model"
	"devtone-chat-go/internal/repository"
	"devtone-chat-go/pkg/es"
	"devtone-chat-go/pkg/events"
	"devtone-chat-go/pkg/kafka"
	"devtone-chat-go/pkg/log"
	"devtone-chat-go/pkg/pubsub"
	"devtone-chat-go/pkg/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 消息层的业务错误。
var (
	ErrEmptyMessage    = errors.New("消息内容不能为空")
	ErrMessageNotFound = errors.New("消息不存在")
	ErrNoAttachment    = errors.New("该消息没有转存的附件")
)

// MessageService 接口定义了消息通道的业务操作。
type MessageService interface {
	// Send 持久化一条消息并在会话通道上发布 insert 事件。
	// messageID 由客户端在创建时生成（与乐观条目按 ID 合并），为空时服务端补齐。
	// 用户在 resolved 会话中发送消息会隐式触发重开。
	Send(ctx context.Context, sessionID, messageID, content string, isUser bool, meta *model.MessageMetadata) (*model.ChatMessage, error)
	// History 按 created_at 升序返回会话的完整消息历史，用于恢复时回放。
	History(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	// MarkRead 将消息置为已读并在会话通道上发布 update 事件。
	MarkRead(ctx context.Context, messageID string) (*model.ChatMessage, error)
	// UnreadCount 返回未读的用户消息数，始终基于权威过滤条件重新计算。
	UnreadCount(ctx context.Context, sessionID string) (int64, error)
	// AttachmentURL 为已转存对象存储的文件消息生成带有效期的下载链接。
	AttachmentURL(ctx context.Context, sessionID, messageID string) (string, error)
	// Search 在聊天记录索引上做全文检索，供坐席控制台使用。
	Search(ctx context.Context, query, sessionID string, size int) ([]es.SearchHit, error)
}

// messageService 是 MessageService 接口的实现。
type messageService struct {
	messageRepo    repository.MessageRepository
	sessionService SessionService
	broker         EventBroker
	esIndex        string
	inlineLimit    int
}

// NewMessageService 创建一个新的 MessageService 实例。
// inlineLimit 是文件消息内联内容的上限（字节），超过则转存对象存储。
func NewMessageService(messageRepo repository.MessageRepository, sessionService SessionService, broker EventBroker, esIndex string, inlineLimit int) MessageService {
	return &messageService{
		messageRepo:    messageRepo,
		sessionService: sessionService,
		broker:         broker,
		esIndex:        esIndex,
		inlineLimit:    inlineLimit,
	}
}

// Send 处理消息发送的完整链路：软关闭重开、附件转存、入库、通道广播，
// 以及尽力而为的检索索引与中继投递。
func (s *messageService) Send(ctx context.Context, sessionID, messageID, content string, isUser bool, meta *model.MessageMetadata) (*model.ChatMessage, error) {
	if strings.TrimSpace(content) == "" && (meta == nil || meta.MessageType != model.MessageTypeFile) {
		return nil, ErrEmptyMessage
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}

	session, err := s.sessionService.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// 软关闭语义：用户对 resolved 会话继续发言即隐式重开
	if isUser && session.Status == model.SessionStatusResolved {
		if _, err := s.sessionService.Reopen(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("重开会话失败: %w", err)
		}
	}

	msg := &model.ChatMessage{
		ID:        messageID,
		SessionID: sessionID,
		Content:   content,
		IsUser:    isUser,
		Metadata:  meta,
		CreatedAt: time.Now(),
	}

	if err := s.offloadAttachment(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("写入消息失败: %w", err)
	}

	event := model.MessageEvent{Event: model.MessageEventInsert, Message: *msg}
	if err := s.broker.Publish(ctx, pubsub.SessionTopic(sessionID), event); err != nil {
		// 消息已入库，乐观展示不受影响；不做自动重试，错误只对外暴露在日志里
		log.Warnf("发布消息 insert 事件失败, message: %s, error: %v", msg.ID, err)
	}

	if err := es.IndexMessage(ctx, s.esIndex, *msg); err != nil {
		log.Warnf("索引聊天消息失败, message: %s, error: %v", msg.ID, err)
	}

	evt := events.ChatRelayEvent{
		Type:      events.TypeMessageCreated,
		SessionID: sessionID,
		MessageID: msg.ID,
		Content:   msg.Content,
		IsUser:    msg.IsUser,
		Timestamp: msg.CreatedAt.UnixMilli(),
	}
	if err := kafka.ProduceChatEvent(evt); err != nil {
		log.Warnf("投递消息中继事件失败, message: %s, error: %v", msg.ID, err)
	}

	return msg, nil
}

// offloadAttachment 将超过内联上限的文件消息内容转存对象存储。
func (s *messageService) offloadAttachment(ctx context.Context, msg *model.ChatMessage) error {
	meta := msg.Metadata
	if meta == nil || meta.MessageType != model.MessageTypeFile {
		return nil
	}
	if s.inlineLimit <= 0 || len(meta.FileData) <= s.inlineLimit || storage.MinioClient == nil {
		return nil
	}

	objectKey, err := storage.PutAttachment(ctx, msg.SessionID, msg.ID, meta.FileName, meta.MimeType, []byte(meta.FileData))
	if err != nil {
		return fmt.Errorf("转存附件失败: %w", err)
	}
	meta.ObjectKey = objectKey
	meta.FileData = ""
	return nil
}

// History 返回会话的消息历史。
func (s *messageService) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	if _, err := s.sessionService.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.messageRepo.FindBySession(ctx, sessionID)
}

// MarkRead 翻转消息的已读标记并广播 update 事件。
func (s *messageService) MarkRead(ctx context.Context, messageID string) (*model.ChatMessage, error) {
	if err := s.messageRepo.MarkRead(ctx, messageID); err != nil {
		return nil, fmt.Errorf("标记消息已读失败: %w", err)
	}
	msg, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	event := model.MessageEvent{Event: model.MessageEventUpdate, Message: *msg}
	if err := s.broker.Publish(ctx, pubsub.SessionTopic(msg.SessionID), event); err != nil {
		log.Warnf("发布消息 update 事件失败, message: %s, error: %v", msg.ID, err)
	}
	return msg, nil
}

// UnreadCount 统计未读的用户消息数量。
func (s *messageService) UnreadCount(ctx context.Context, sessionID string) (int64, error) {
	return s.messageRepo.CountUnread(ctx, sessionID)
}

// AttachmentURL 为已转存的附件生成预签名下载链接。
// 内联附件的内容已在消息元数据中，不走对象存储。
func (s *messageService) AttachmentURL(ctx context.Context, sessionID, messageID string) (string, error) {
	msg, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrMessageNotFound
		}
		return "", err
	}
	if msg.SessionID != sessionID {
		return "", ErrMessageNotFound
	}
	if msg.Metadata == nil || msg.Metadata.MessageType != model.MessageTypeFile || msg.Metadata.ObjectKey == "" {
		return "", ErrNoAttachment
	}
	if storage.MinioClient == nil {
		return "", errors.New("对象存储不可用")
	}
	return storage.GetPresignedURL(msg.Metadata.ObjectKey, 15*time.Minute)
}

// Search 做聊天记录全文检索。
func (s *messageService) Search(ctx context.Context, query, sessionID string, size int) ([]es.SearchHit, error) {
	return es.SearchMessages(ctx, s.esIndex, query, sessionID, size)
}
