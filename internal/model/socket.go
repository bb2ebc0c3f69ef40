package model

import "encoding/json"

// 在线状态 socket 协议的消息类型，按 type 字段区分。
const (
	SocketTypeUserConnect    = "user_connect"
	SocketTypeGetOnlineUsers = "get_online_users"
	SocketTypeOnlineUsers    = "online_users"
	SocketTypeUserOnline     = "user_online"
	SocketTypeUserOffline    = "user_offline"
)

// SocketEnvelope 是 socket 协议的封闭式标签联合：
// 每个已知 type 对应一个变体，未知但合法的 JSON 负载保留在 Opaque 中，
// 由服务器原样转发给除发送者外的所有连接（通用中继）。
type SocketEnvelope struct {
	Type    string   `json:"type"`
	UserID  string   `json:"userId,omitempty"`
	UserIDs []string `json:"userIds,omitempty"`
	// Opaque 保存未知类型消息的原始字节，不参与 JSON 编码。
	Opaque json.RawMessage `json:"-"`
}

// ParseSocketEnvelope 解析一条入站 socket 消息。
// 非法 JSON 返回错误（调用方记录日志并保持连接）；
// 未知 type 不视为错误，原始字节进入 Opaque 变体。
func ParseSocketEnvelope(data []byte) (*SocketEnvelope, error) {
	var env SocketEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case SocketTypeUserConnect, SocketTypeGetOnlineUsers, SocketTypeOnlineUsers,
		SocketTypeUserOnline, SocketTypeUserOffline:
		// 已知变体，字段已就位
	default:
		env.Opaque = append(json.RawMessage(nil), data...)
	}
	return &env, nil
}
