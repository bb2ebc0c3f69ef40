package widget

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"devtone-chat-go/internal/model"
	"devtone-chat-go/pkg/log"
)

// TestMain 初始化全局 logger，发送失败等路径会写告警日志。
func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

// stubAPI 是 API 接口的测试替身。
// onSend 在 SendMessage 被调用时触发，用于观察网络调用发生时的本地状态。
type stubAPI struct {
	sendErr  error
	lastID   string
	serverAt time.Time
	onSend   func()
}

func (a *stubAPI) CreateSession(ctx context.Context, info model.UserInfo) (*model.ChatSession, error) {
	return &model.ChatSession{ID: "sess-1", UserName: info.Name, Status: model.SessionStatusActive}, nil
}

func (a *stubAPI) SendMessage(ctx context.Context, sessionID, messageID, content string, meta *model.MessageMetadata) (*model.ChatMessage, error) {
	if a.onSend != nil {
		a.onSend()
	}
	if a.sendErr != nil {
		return nil, a.sendErr
	}
	a.lastID = messageID
	// 服务端沿用客户端生成的 ID，盖上权威时间戳
	return &model.ChatMessage{
		ID:        messageID,
		SessionID: sessionID,
		Content:   content,
		IsUser:    true,
		CreatedAt: a.serverAt,
	}, nil
}

func (a *stubAPI) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	return nil, nil
}

func (a *stubAPI) NotifyTyping(ctx context.Context, sessionID string, isUser, isTyping bool) error {
	return nil
}

func newManagerFixture(api API) *Manager {
	return NewManager(api, nil, NewSessionStore(NewMemoryStorage(), 0), true)
}

// 测试发送消息先写入本地视图：网络调用返回前乐观条目已可见。
func TestManagerSendOptimistic(t *testing.T) {
	api := &stubAPI{serverAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)}
	m := newManagerFixture(api)
	ctx := context.Background()

	if _, err := m.Create(ctx, model.UserInfo{Name: "张三", Email: "zhangsan@example.com"}); err != nil {
		t.Fatalf("创建会话失败: %v", err)
	}

	// 网络调用发生时乐观条目必须已经在视图中
	var visibleAtSend int
	api.onSend = func() { visibleAtSend = len(m.Conversation.Messages()) }

	msg, err := m.Send(ctx, "你好")
	if err != nil {
		t.Fatalf("发送消息失败: %v", err)
	}
	if visibleAtSend != 1 {
		t.Fatalf("网络调用时视图消息数 = %d, 期望乐观条目已可见", visibleAtSend)
	}

	view := m.Conversation.Messages()
	if len(view) != 1 {
		t.Fatalf("视图消息数 = %d, 期望 1（服务端副本按 ID 合并，不产生重复条目）", len(view))
	}
	if view[0].ID != msg.ID || view[0].ID != api.lastID {
		t.Fatalf("乐观条目与服务端副本的 ID 未对齐: 视图 %q, 服务端 %q", view[0].ID, api.lastID)
	}
	if !view[0].CreatedAt.Equal(api.serverAt) {
		t.Fatalf("合并后应保留服务端的权威时间戳, 实际 %v", view[0].CreatedAt)
	}
}

// 测试发送失败时乐观条目保留在视图中，不回滚也不自动重试。
func TestManagerSendFailureKeepsOptimisticMessage(t *testing.T) {
	api := &stubAPI{sendErr: errors.New("网络不可达")}
	m := newManagerFixture(api)
	ctx := context.Background()

	if _, err := m.Create(ctx, model.UserInfo{Name: "张三", Email: "zhangsan@example.com"}); err != nil {
		t.Fatalf("创建会话失败: %v", err)
	}

	if _, err := m.Send(ctx, "Hello"); err == nil {
		t.Fatal("发送失败应向调用方返回错误")
	}

	view := m.Conversation.Messages()
	if len(view) != 1 {
		t.Fatalf("发送失败后视图消息数 = %d, 期望乐观条目仍然可见", len(view))
	}
	if view[0].Content != "Hello" || !view[0].IsUser {
		t.Fatalf("乐观条目不完整: %+v", view[0])
	}
}

// 测试未建立会话时发送被拒绝。
func TestManagerSendWithoutSession(t *testing.T) {
	m := newManagerFixture(&stubAPI{})
	if _, err := m.Send(context.Background(), "hi"); err != ErrNoSession {
		t.Fatalf("期望 ErrNoSession, 实际 %v", err)
	}
}
