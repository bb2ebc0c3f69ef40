// Package events 定义了外发到 Kafka 的聊天事件结构。
package events

// 中继事件类型。CRM/Webhook 的转发由外部消费者完成，这里只负责投递。
const (
	TypeMessageCreated  = "message_created"
	TypeSessionResolved = "session_resolved"
	TypeSessionReopened = "session_reopened"
)

// ChatRelayEvent 是投递到中继主题的事件负载。
type ChatRelayEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsUser    bool   `json:"is_user"`
	Timestamp int64  `json:"timestamp"`
}
