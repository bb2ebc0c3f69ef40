package widget

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"devtone-chat-go/internal/model"
	"devtone-chat-go/pkg/log"
	"devtone-chat-go/pkg/pubsub"

	"github.com/google/uuid"
)

// emailRegex 与服务端一致，创建会话前先在本地校验一次。
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// 生命周期层的错误。
var (
	ErrSessionExists = errors.New("当前浏览周期内已存在会话，不允许重复创建")
	ErrNoSession     = errors.New("尚未创建或恢复会话")
	ErrNameRequired  = errors.New("访客姓名不能为空")
	ErrInvalidEmail  = errors.New("访客邮箱格式不正确")
)

// API 是组件访问服务端所需的最小接口，由 Client 实现。
// SendMessage 携带客户端生成的消息 ID，服务端回传的副本按该 ID 合并。
type API interface {
	CreateSession(ctx context.Context, info model.UserInfo) (*model.ChatSession, error)
	SendMessage(ctx context.Context, sessionID, messageID, content string, meta *model.MessageMetadata) (*model.ChatMessage, error)
	History(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	NotifyTyping(ctx context.Context, sessionID string, isUser, isTyping bool) error
}

// Broker 是组件订阅会话通道所需的最小接口，由 pubsub.Broker 实现。
type Broker interface {
	Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error)
}

// Manager 管理聊天组件的会话生命周期：
// 恢复、创建、订阅三个会话通道，以及所有退出路径上的资源释放。
type Manager struct {
	api         API
	broker      Broker
	store       *SessionStore
	localIsUser bool

	mu       sync.Mutex
	session  *model.ChatSession
	userInfo model.UserInfo
	cancels  []func()
	// degraded 表示通道订阅失败，UI 应显示离线指示而不是阻塞。
	degraded bool

	Conversation *Conversation
	Typing       *TypingIndicator
}

// NewManager 创建一个组件生命周期管理器。
// localIsUser 为 true 表示访客端组件，false 表示坐席控制台嵌入。
func NewManager(api API, broker Broker, store *SessionStore, localIsUser bool) *Manager {
	return &Manager{
		api:          api,
		broker:       broker,
		store:        store,
		localIsUser:  localIsUser,
		Conversation: NewConversation(localIsUser),
		Typing:       NewTypingIndicator(localIsUser, DefaultTypingClear, nil),
	}
}

// Restore 尝试从本地存储恢复会话。
// TTL 内的重复调用返回同一个会话 ID，不产生任何服务端状态；
// 记录缺失、过期或损坏时返回 (nil, false)，调用方应走资料表单。
func (m *Manager) Restore() (*model.ChatSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return m.session, true
	}

	rec := m.store.Load()
	if rec == nil {
		return nil, false
	}
	session := rec.Session
	m.session = &session
	m.userInfo = rec.UserInfo
	m.Conversation.SetStatus(session.Status)
	return m.session, true
}

// Create 收集访客资料并创建新会话。
// 不变量：一个浏览周期内至多一个会话，Restore 已返回会话时禁止调用。
func (m *Manager) Create(ctx context.Context, info model.UserInfo) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil, ErrSessionExists
	}
	if strings.TrimSpace(info.Name) == "" {
		return nil, ErrNameRequired
	}
	if !emailRegex.MatchString(info.Email) {
		return nil, ErrInvalidEmail
	}

	session, err := m.api.CreateSession(ctx, info)
	if err != nil {
		return nil, err
	}

	if err := m.store.Save(*session, info); err != nil {
		// 本地持久化失败不阻塞会话使用，只是下次刷新后需要重新填表
		log.Warnf("持久化会话记录失败: %v", err)
	}
	m.session = session
	m.userInfo = info
	return session, nil
}

// Start 回放历史并订阅会话的三个通道。
// 任一订阅失败都会置位降级标志（UI 显示离线指示），已建立的订阅保持工作。
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return ErrNoSession
	}

	// 先回放历史，再订阅增量事件；迟到的重复事件由 ID 合并兜底
	history, err := m.api.History(ctx, session.ID)
	if err != nil {
		log.Warnf("回放消息历史失败, session: %s, error: %v", session.ID, err)
		m.setDegraded(true)
	} else {
		m.Conversation.Replay(history)
	}

	m.subscribe(ctx, pubsub.SessionTopic(session.ID), m.handleMessageEvent)
	m.subscribe(ctx, pubsub.TypingTopic(session.ID), m.handleTypingEvent)
	m.subscribe(ctx, pubsub.CloseTopic(session.ID), m.handleCloseEvent)
	return nil
}

// subscribe 建立一个通道订阅并登记取消函数。
func (m *Manager) subscribe(ctx context.Context, topic string, handle func([]byte)) {
	events, cancel, err := m.broker.Subscribe(ctx, topic)
	if err != nil {
		log.Warnf("订阅通道 %s 失败: %v", topic, err)
		m.setDegraded(true)
		return
	}

	m.mu.Lock()
	m.cancels = append(m.cancels, cancel)
	m.mu.Unlock()

	go func() {
		for data := range events {
			handle(data)
		}
	}()
}

func (m *Manager) handleMessageEvent(data []byte) {
	var evt model.MessageEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Warnf("解析消息事件失败: %v", err)
		return
	}
	switch evt.Event {
	case model.MessageEventInsert:
		m.Conversation.ApplyInsert(evt.Message)
	case model.MessageEventUpdate:
		m.Conversation.ApplyUpdate(evt.Message)
	}
}

func (m *Manager) handleTypingEvent(data []byte) {
	var evt model.TypingEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Warnf("解析输入事件失败: %v", err)
		return
	}
	m.Typing.Apply(evt)
}

func (m *Manager) handleCloseEvent(data []byte) {
	var evt model.CloseEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Warnf("解析关闭事件失败: %v", err)
		return
	}
	m.Conversation.ApplyCloseEvent(evt)
}

// Send 发送一条消息：先以客户端生成的 ID 写入本地视图（乐观展示），
// 再调用服务端。发送失败时乐观条目保留在视图中，不回滚也不自动重试，
// 错误交由调用方提示；成功时服务端副本按同一 ID 合并回视图。
func (m *Manager) Send(ctx context.Context, content string) (*model.ChatMessage, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return nil, ErrNoSession
	}

	pending := model.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Content:   content,
		IsUser:    m.localIsUser,
		CreatedAt: time.Now(),
	}
	m.Conversation.AppendLocal(pending)

	msg, err := m.api.SendMessage(ctx, session.ID, pending.ID, content, nil)
	if err != nil {
		log.Warnf("发送消息失败, message: %s, error: %v", pending.ID, err)
		return nil, err
	}
	// 服务端副本携带权威时间戳，按 ID 覆盖乐观条目
	m.Conversation.ApplyUpdate(*msg)
	return msg, nil
}

// NotifyTyping 向对端广播本端的输入状态，尽力而为。
func (m *Manager) NotifyTyping(ctx context.Context, isTyping bool) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return
	}
	if err := m.api.NotifyTyping(ctx, session.ID, m.localIsUser, isTyping); err != nil {
		log.Debugf("广播输入状态失败: %v", err)
	}
}

// End 结束当前会话：清除本地记录、退订全部通道、重置内存状态。
// 服务端的会话与消息保持不变。
func (m *Manager) End() {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = nil
	m.session = nil
	m.userInfo = model.UserInfo{}
	m.degraded = false
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	m.Typing.Stop()
	m.Conversation.Reset()

	if err := m.store.Clear(); err != nil {
		log.Warnf("清除本地会话记录失败: %v", err)
	}
}

// Close 释放订阅资源但保留本地会话记录，组件卸载时调用。
// 与 End 一样，这是每条退出路径上都必须执行的释放动作。
func (m *Manager) Close() {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = nil
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	m.Typing.Stop()
}

// Degraded 返回组件是否处于降级（离线指示）状态。
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

func (m *Manager) setDegraded(v bool) {
	m.mu.Lock()
	m.degraded = v
	m.mu.Unlock()
}

// Session 返回当前会话，尚未建立时返回 nil。
func (m *Manager) Session() *model.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}
