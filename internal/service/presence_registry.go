package service

import (
	"encoding/json"
	"sync"

	"devtone-chat-go/internal/model"
	"devtone-chat-go/pkg/log"
)

// Conn 是在线注册表对连接的最小要求，*websocket.Conn 满足该接口。
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// PresenceRegistry 维护 userId 到活跃连接的内存映射。
// 不变量：同一 userId 最多一条记录，新连接替换并关闭旧连接。
// 注册表仅存在于单个进程内，不落盘，进程重启后在线状态全部丢失；
// 多实例部署下各实例只能看到自己的连接（已知限制）。
type PresenceRegistry struct {
	mu    sync.Mutex
	conns map[string]Conn
}

// NewPresenceRegistry 创建一个新的 PresenceRegistry 实例。
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{conns: make(map[string]Conn)}
}

// Register 登记一条连接，并向包括发送者在内的所有连接广播 user_online。
// 同一 userId 的旧连接会被关闭后替换，不会产生重复条目。
func (r *PresenceRegistry) Register(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[userID]; ok && old != conn {
		_ = old.Close()
	}
	r.conns[userID] = conn

	r.broadcastLocked(model.SocketEnvelope{
		Type:   model.SocketTypeUserOnline,
		UserID: userID,
	}, nil)
	log.Infof("用户 %s 上线，当前在线 %d 人", userID, len(r.conns))
}

// Deregister 移除一条连接并向其余连接广播 user_offline。
// 条目不存在、或已被更新的连接替换时是无害的空操作（如重复断开）。
func (r *PresenceRegistry) Deregister(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.conns[userID]
	if !ok || cur != conn {
		return
	}
	delete(r.conns, userID)

	r.broadcastLocked(model.SocketEnvelope{
		Type:   model.SocketTypeUserOffline,
		UserID: userID,
	}, nil)
	log.Infof("用户 %s 下线，当前在线 %d 人", userID, len(r.conns))
}

// OnlineUsers 返回当前在线的 userId 快照。
func (r *PresenceRegistry) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// SendSnapshot 只向请求方回复一份在线用户快照。
func (r *PresenceRegistry) SendSnapshot(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	env := model.SocketEnvelope{
		Type:    model.SocketTypeOnlineUsers,
		UserIDs: ids,
	}
	if err := conn.WriteJSON(env); err != nil {
		log.Warnf("回复在线用户快照失败: %v", err)
	}
}

// Relay 将一段不透明负载原样转发给除发送者外的所有连接。
func (r *PresenceRegistry) Relay(sender Conn, payload json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, conn := range r.conns {
		if conn == sender {
			continue
		}
		// json.RawMessage 原样编码，负载不经过二次解析
		if err := conn.WriteJSON(payload); err != nil {
			log.Warnf("向用户 %s 转发消息失败: %v", userID, err)
		}
	}
}

// broadcastLocked 向所有连接广播一条事件，调用方必须已持有 r.mu。
func (r *PresenceRegistry) broadcastLocked(env model.SocketEnvelope, except Conn) {
	for userID, conn := range r.conns {
		if conn == except {
			continue
		}
		if err := conn.WriteJSON(env); err != nil {
			log.Warnf("向用户 %s 广播 %s 事件失败: %v", userID, env.Type, err)
		}
	}
}
