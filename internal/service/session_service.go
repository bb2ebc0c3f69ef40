// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"devtone-chat-go/internal/model"
	"devtone-chat-go/internal/repository"
	"devtone-chat-go/pkg/events"
	"devtone-chat-go/pkg/kafka"
	"devtone-chat-go/pkg/log"
	"devtone-chat-go/pkg/pubsub"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// emailRegex 校验邮箱地址（RFC 5322 的简化形式）。
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// 会话层的业务错误，调用方据此返回对应的 HTTP 状态。
var (
	ErrNameRequired    = errors.New("访客姓名不能为空")
	ErrInvalidEmail    = errors.New("访客邮箱格式不正确")
	ErrSessionNotFound = errors.New("会话不存在")
)

// 关闭与重开时插入的系统消息文案。
const (
	resolvedNotice = "此会话已被标记为已解决。如有其他问题，随时继续留言。"
	reopenedNotice = "会话已重新打开，客服会尽快回复。"
)

// EventBroker 是服务层发布通道事件所需的最小接口，由 pubsub.Broker 实现。
type EventBroker interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// SessionService 接口定义了会话生命周期与关闭状态机的业务操作。
type SessionService interface {
	Create(ctx context.Context, info model.UserInfo) (*model.ChatSession, error)
	Get(ctx context.Context, id string) (*model.ChatSession, error)
	// Resolve 将会话置为 resolved。对已是 resolved 的会话幂等：
	// 不插入重复的关闭消息，也不重复广播。
	Resolve(ctx context.Context, id, note string) (*model.ChatSession, error)
	// Reopen 将会话恢复为 active。对已是 active 的会话幂等。
	Reopen(ctx context.Context, id string) (*model.ChatSession, error)
}

// sessionService 是 SessionService 接口的实现。
type sessionService struct {
	sessionRepo repository.SessionRepository
	messageRepo repository.MessageRepository
	broker      EventBroker
}

// NewSessionService 创建一个新的 SessionService 实例。
func NewSessionService(sessionRepo repository.SessionRepository, messageRepo repository.MessageRepository, broker EventBroker) SessionService {
	return &sessionService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		broker:      broker,
	}
}

// Create 校验访客资料后创建一个新的 active 会话。
func (s *sessionService) Create(ctx context.Context, info model.UserInfo) (*model.ChatSession, error) {
	if strings.TrimSpace(info.Name) == "" {
		return nil, ErrNameRequired
	}
	if !emailRegex.MatchString(info.Email) {
		return nil, ErrInvalidEmail
	}

	session := &model.ChatSession{
		ID:          uuid.NewString(),
		UserName:    strings.TrimSpace(info.Name),
		UserEmail:   info.Email,
		UserPhone:   info.Phone,
		UserCompany: info.Company,
		InquiryType: info.InquiryType,
		Status:      model.SessionStatusActive,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}
	return session, nil
}

// Get 根据 ID 返回一个会话。
func (s *sessionService) Get(ctx context.Context, id string) (*model.ChatSession, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// Resolve 执行 active -> resolved 的状态转换。
// 转换同时做两件事：在消息历史中插入一条 system_close 消息（让迟到的订阅端
// 也能看到这次转换），并在关闭通道上广播事件。
func (s *sessionService) Resolve(ctx context.Context, id, note string) (*model.ChatSession, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == model.SessionStatusResolved {
		// 幂等：最新状态已是 resolved，不再追加消息或广播
		return session, nil
	}

	if note == "" {
		note = resolvedNotice
	}

	if err := s.sessionRepo.UpdateStatus(ctx, id, model.SessionStatusResolved); err != nil {
		return nil, fmt.Errorf("更新会话状态失败: %w", err)
	}
	session.Status = model.SessionStatusResolved

	if _, err := s.insertSystemMessage(ctx, id, note, model.MessageTypeSystemClose); err != nil {
		return nil, err
	}

	s.broadcastTransition(ctx, session, note)
	s.produceRelayEvent(events.TypeSessionResolved, session)
	return session, nil
}

// Reopen 执行 resolved -> active 的状态转换。
func (s *sessionService) Reopen(ctx context.Context, id string) (*model.ChatSession, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == model.SessionStatusActive {
		return session, nil
	}

	if err := s.sessionRepo.UpdateStatus(ctx, id, model.SessionStatusActive); err != nil {
		return nil, fmt.Errorf("更新会话状态失败: %w", err)
	}
	session.Status = model.SessionStatusActive

	if _, err := s.insertSystemMessage(ctx, id, reopenedNotice, model.MessageTypeSystemReopened); err != nil {
		return nil, err
	}

	s.broadcastTransition(ctx, session, reopenedNotice)
	s.produceRelayEvent(events.TypeSessionReopened, session)
	return session, nil
}

// insertSystemMessage 插入一条系统合成消息并在消息通道上发布 insert 事件。
func (s *sessionService) insertSystemMessage(ctx context.Context, sessionID, content, msgType string) (*model.ChatMessage, error) {
	msg := &model.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Content:   content,
		IsUser:    false,
		Metadata:  &model.MessageMetadata{MessageType: msgType},
		CreatedAt: time.Now(),
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("写入系统消息失败: %w", err)
	}

	event := model.MessageEvent{Event: model.MessageEventInsert, Message: *msg}
	if err := s.broker.Publish(ctx, pubsub.SessionTopic(sessionID), event); err != nil {
		// 通道与消息历史相互独立，广播失败不回滚已入库的消息
		log.Warnf("发布系统消息事件失败, session: %s, error: %v", sessionID, err)
	}
	return msg, nil
}

// broadcastTransition 在关闭通道上广播状态转换。
// 关闭事件与其伴随的系统消息之间没有跨通道顺序保证，订阅端需幂等收敛。
func (s *sessionService) broadcastTransition(ctx context.Context, session *model.ChatSession, note string) {
	event := model.CloseEvent{
		SessionID: session.ID,
		Status:    session.Status,
		Message:   note,
	}
	if err := s.broker.Publish(ctx, pubsub.CloseTopic(session.ID), event); err != nil {
		log.Warnf("广播会话状态转换失败, session: %s, error: %v", session.ID, err)
	}
}

// produceRelayEvent 向 Kafka 投递中继事件，失败只记录日志。
func (s *sessionService) produceRelayEvent(eventType string, session *model.ChatSession) {
	evt := events.ChatRelayEvent{
		Type:      eventType,
		SessionID: session.ID,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := kafka.ProduceChatEvent(evt); err != nil {
		log.Warnf("投递会话中继事件失败, session: %s, error: %v", session.ID, err)
	}
}
