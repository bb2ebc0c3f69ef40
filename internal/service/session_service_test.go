package service

import (
	"context"
	"sync"
	"testing"

	"devtone-chat-go/internal/model"
	"devtone-chat-go/pkg/pubsub"

	"gorm.io/gorm"
)

// fakeSessionRepo 是 SessionRepository 的内存替身。
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.ChatSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.ChatSession)}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *model.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) FindByID(ctx context.Context, id string) (*model.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) UpdateStatus(ctx context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Status = status
	}
	return nil
}

// fakeMessageRepo 是 MessageRepository 的内存替身。
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*model.ChatMessage
}

func newFakeMessageRepo() *fakeMessageRepo { return &fakeMessageRepo{} }

func (r *fakeMessageRepo) Create(ctx context.Context, msg *model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *fakeMessageRepo) FindByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeMessageRepo) FindBySession(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ChatMessage
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			m.IsRead = true
		}
	}
	return nil
}

func (r *fakeMessageRepo) CountUnread(ctx context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, m := range r.messages {
		if !m.IsUser || m.IsRead {
			continue
		}
		if sessionID != "" && m.SessionID != sessionID {
			continue
		}
		count++
	}
	return count, nil
}

// byType 统计指定 message_type 的消息数。
func (r *fakeMessageRepo) byType(msgType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.messages {
		if m.Metadata != nil && m.Metadata.MessageType == msgType {
			count++
		}
	}
	return count
}

// fakeBroker 记录所有发布的事件。
type fakeBroker struct {
	mu        sync.Mutex
	published []publishedEvent
}

type publishedEvent struct {
	topic   string
	payload interface{}
}

func (b *fakeBroker) Publish(ctx context.Context, topic string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, publishedEvent{topic: topic, payload: payload})
	return nil
}

// onTopic 返回指定通道上的事件。
func (b *fakeBroker) onTopic(topic string) []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedEvent
	for _, e := range b.published {
		if e.topic == topic {
			out = append(out, e)
		}
	}
	return out
}

func newSessionFixture() (SessionService, *fakeSessionRepo, *fakeMessageRepo, *fakeBroker) {
	sessionRepo := newFakeSessionRepo()
	messageRepo := newFakeMessageRepo()
	broker := &fakeBroker{}
	return NewSessionService(sessionRepo, messageRepo, broker), sessionRepo, messageRepo, broker
}

// 测试创建会话时的资料校验。
func TestSessionCreateValidation(t *testing.T) {
	svc, _, _, _ := newSessionFixture()
	ctx := context.Background()

	if _, err := svc.Create(ctx, model.UserInfo{Name: "  ", Email: "a@b.com"}); err != ErrNameRequired {
		t.Fatalf("空姓名应返回 ErrNameRequired, 实际 %v", err)
	}
	if _, err := svc.Create(ctx, model.UserInfo{Name: "张三", Email: "not-an-email"}); err != ErrInvalidEmail {
		t.Fatalf("非法邮箱应返回 ErrInvalidEmail, 实际 %v", err)
	}

	session, err := svc.Create(ctx, model.UserInfo{Name: "张三", Email: "zhangsan@example.com"})
	if err != nil {
		t.Fatalf("创建会话失败: %v", err)
	}
	if session.ID == "" {
		t.Fatal("新会话应分配 ID")
	}
	if session.Status != model.SessionStatusActive {
		t.Fatalf("新会话状态 = %q, 期望 active", session.Status)
	}
}

// 测试查询不存在的会话。
func TestSessionGetNotFound(t *testing.T) {
	svc, _, _, _ := newSessionFixture()
	if _, err := svc.Get(context.Background(), "missing"); err != ErrSessionNotFound {
		t.Fatalf("期望 ErrSessionNotFound, 实际 %v", err)
	}
}

// 测试关闭会话：状态转换、系统消息入库、关闭通道广播。
func TestSessionResolve(t *testing.T) {
	svc, _, messageRepo, broker := newSessionFixture()
	ctx := context.Background()

	session, _ := svc.Create(ctx, model.UserInfo{Name: "张三", Email: "zhangsan@example.com"})

	resolved, err := svc.Resolve(ctx, session.ID, "")
	if err != nil {
		t.Fatalf("关闭会话失败: %v", err)
	}
	if resolved.Status != model.SessionStatusResolved {
		t.Fatalf("状态 = %q, 期望 resolved", resolved.Status)
	}

	// 系统消息进入消息历史，迟到的订阅端靠回放也能看到这次转换
	if got := messageRepo.byType(model.MessageTypeSystemClose); got != 1 {
		t.Fatalf("system_close 消息数 = %d, 期望 1", got)
	}

	// 关闭通道上有一条 resolved 广播
	closeEvents := broker.onTopic(pubsub.CloseTopic(session.ID))
	if len(closeEvents) != 1 {
		t.Fatalf("关闭通道事件数 = %d, 期望 1", len(closeEvents))
	}
	evt, ok := closeEvents[0].payload.(model.CloseEvent)
	if !ok || evt.Status != model.SessionStatusResolved {
		t.Fatalf("关闭事件 = %+v", closeEvents[0].payload)
	}
}

// 测试对已关闭的会话重复关闭是幂等的：
// 不插入第二条系统消息，也不重复广播。
func TestSessionResolveIdempotent(t *testing.T) {
	svc, _, messageRepo, broker := newSessionFixture()
	ctx := context.Background()

	session, _ := svc.Create(ctx, model.UserInfo{Name: "张三", Email: "zhangsan@example.com"})
	if _, err := svc.Resolve(ctx, session.ID, ""); err != nil {
		t.Fatalf("第一次关闭失败: %v", err)
	}
	again, err := svc.Resolve(ctx, session.ID, "")
	if err != nil {
		t.Fatalf("重复关闭不应报错: %v", err)
	}
	if again.Status != model.SessionStatusResolved {
		t.Fatalf("状态 = %q, 期望 resolved", again.Status)
	}

	if got := messageRepo.byType(model.MessageTypeSystemClose); got != 1 {
		t.Fatalf("重复关闭后 system_close 消息数 = %d, 期望仍为 1", got)
	}
	if got := len(broker.onTopic(pubsub.CloseTopic(session.ID))); got != 1 {
		t.Fatalf("重复关闭后关闭通道事件数 = %d, 期望仍为 1", got)
	}
}

// 测试重开会话以及重开的幂等性。
func TestSessionReopen(t *testing.T) {
	svc, _, messageRepo, broker := newSessionFixture()
	ctx := context.Background()

	session, _ := svc.Create(ctx, model.UserInfo{Name: "张三", Email: "zhangsan@example.com"})
	_, _ = svc.Resolve(ctx, session.ID, "")

	reopened, err := svc.Reopen(ctx, session.ID)
	if err != nil {
		t.Fatalf("重开会话失败: %v", err)
	}
	if reopened.Status != model.SessionStatusActive {
		t.Fatalf("状态 = %q, 期望 active", reopened.Status)
	}
	if got := messageRepo.byType(model.MessageTypeSystemReopened); got != 1 {
		t.Fatalf("system_reopened 消息数 = %d, 期望 1", got)
	}

	// 对 active 会话重开是空操作
	_, _ = svc.Reopen(ctx, session.ID)
	if got := messageRepo.byType(model.MessageTypeSystemReopened); got != 1 {
		t.Fatalf("重复重开后 system_reopened 消息数 = %d, 期望仍为 1", got)
	}

	closeEvents := broker.onTopic(pubsub.CloseTopic(session.ID))
	// 一次关闭 + 一次重开
	if len(closeEvents) != 2 {
		t.Fatalf("关闭通道事件数 = %d, 期望 2", len(closeEvents))
	}
}
