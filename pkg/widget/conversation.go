package widget

import (
	"sort"
	"sync"

	"devtone-chat-go/internal/model"
)

// Conversation 维护一个会话在本地的消息视图。
// 视图由乐观写入的本地消息和通道事件按消息 ID 合并而成，
// 并始终保持 created_at 升序——排序发生在每次接收时，不信任网络到达顺序。
type Conversation struct {
	mu sync.Mutex
	// localIsUser 标识本端角色：访客组件为 true，坐席控制台为 false。
	localIsUser bool
	messages    []model.ChatMessage
	index       map[string]int // 消息 ID -> messages 下标
	status      string
}

// NewConversation 创建一个本地会话视图。
func NewConversation(localIsUser bool) *Conversation {
	return &Conversation{
		localIsUser: localIsUser,
		index:       make(map[string]int),
		status:      model.SessionStatusActive,
	}
}

// AppendLocal 把本端刚发送的消息立即写入视图（乐观展示）。
// 之后通道回传的同一条消息会被回声抑制丢弃，不会出现重复条目。
func (c *Conversation) AppendLocal(msg model.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upsertLocked(msg)
}

// Replay 用服务器返回的历史覆盖本地视图（恢复会话时调用）。
func (c *Conversation) Replay(messages []model.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = c.messages[:0]
	c.index = make(map[string]int, len(messages))
	for _, msg := range messages {
		c.upsertLocked(msg)
	}
}

// ApplyInsert 应用通道上的 insert 事件。
// 回声抑制：本端角色发出的非系统消息已经通过 AppendLocal 在视图中，
// 其回传事件被忽略；只有对端与系统消息会被应用。
func (c *Conversation) ApplyInsert(msg model.ChatMessage) {
	if msg.IsUser == c.localIsUser && !msg.IsSystem() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upsertLocked(msg)
}

// ApplyUpdate 应用通道上的 update 事件（目前只有 is_read 翻转）。
// 未知消息的 update 按 insert 处理，保证迟到订阅端也能收敛。
func (c *Conversation) ApplyUpdate(msg model.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upsertLocked(msg)
}

// upsertLocked 按消息 ID 合并一条消息并恢复 created_at 升序。
// 调用方必须持有 c.mu。
func (c *Conversation) upsertLocked(msg model.ChatMessage) {
	if i, ok := c.index[msg.ID]; ok {
		c.messages[i] = msg
	} else {
		c.messages = append(c.messages, msg)
	}
	sort.SliceStable(c.messages, func(i, j int) bool {
		return c.messages[i].CreatedAt.Before(c.messages[j].CreatedAt)
	})
	for i, m := range c.messages {
		c.index[m.ID] = i
	}
}

// Messages 返回当前视图的快照，已按 created_at 升序排列。
func (c *Conversation) Messages() []model.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// UnreadCount 返回未读角标数。
// 每次都从权威过滤条件（用户消息且未读）重新计算，绝不做增量累加。
func (c *Conversation) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, m := range c.messages {
		if m.IsUser && !m.IsRead {
			count++
		}
	}
	return count
}

// ApplyCloseEvent 应用关闭通道上的状态转换广播。
// 关闭事件与伴随的系统消息没有跨通道顺序保证，重复应用是幂等的。
func (c *Conversation) ApplyCloseEvent(evt model.CloseEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if evt.Status == model.SessionStatusActive || evt.Status == model.SessionStatusResolved {
		c.status = evt.Status
	}
}

// Status 返回会话在本地视图中的状态。
func (c *Conversation) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus 直接设置本地状态（恢复会话时与服务器记录对齐）。
func (c *Conversation) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// Reset 清空本地视图，会话结束时调用。
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.index = make(map[string]int)
	c.status = model.SessionStatusActive
}
