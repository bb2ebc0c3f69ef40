package model

// 消息通道上的事件类型。
const (
	MessageEventInsert = "insert"
	MessageEventUpdate = "update"
)

// MessageEvent 是 session:{id} 通道上承载的事件：
// insert 表示新消息入库，update 表示可变字段（目前只有 is_read）发生变化。
type MessageEvent struct {
	Event   string      `json:"event"`
	Message ChatMessage `json:"message"`
}

// TypingEvent 是 typing:{id} 通道上的临时事件，不做任何持久化，
// 只标识哪一方正在输入。
type TypingEvent struct {
	SessionID string `json:"session_id"`
	IsUser    bool   `json:"is_user"`
	IsTyping  bool   `json:"is_typing"`
}

// CloseEvent 是 session_close:{id} 通道上的广播事件，
// 同时覆盖会话关闭（resolved）与重开（active）两种转换。
type CloseEvent struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}
