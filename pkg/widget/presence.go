package widget

import (
	"context"
	"encoding/json"
	"sync"

	"devtone-chat-go/internal/model"
	"devtone-chat-go/pkg/log"

	"github.com/gorilla/websocket"
)

// PresenceClient 维护一条到服务器的长连接：
// 连上后宣告本端身份，并跟踪所有在线用户的上下线转换。
type PresenceClient struct {
	conn   *websocket.Conn
	userID string

	mu     sync.Mutex
	online map[string]bool
	// onOpaque 接收服务器中继的未建模负载，可以为 nil。
	onOpaque func(payload json.RawMessage)

	done chan struct{}
}

// DialPresence 建立在线状态连接并宣告 userID。
func DialPresence(ctx context.Context, wsURL, userID string, onOpaque func(json.RawMessage)) (*PresenceClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	p := &PresenceClient{
		conn:     conn,
		userID:   userID,
		online:   make(map[string]bool),
		onOpaque: onOpaque,
		done:     make(chan struct{}),
	}

	announce := model.SocketEnvelope{Type: model.SocketTypeUserConnect, UserID: userID}
	if err := conn.WriteJSON(announce); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go p.readLoop()
	return p, nil
}

// readLoop 消费服务器推送的在线状态事件。
func (p *PresenceClient) readLoop() {
	defer close(p.done)
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			log.Debugf("在线状态连接读取结束: %v", err)
			return
		}

		env, err := model.ParseSocketEnvelope(data)
		if err != nil {
			log.Warnf("收到非法的在线状态负载: %v", err)
			continue
		}

		switch env.Type {
		case model.SocketTypeOnlineUsers:
			p.mu.Lock()
			p.online = make(map[string]bool, len(env.UserIDs))
			for _, id := range env.UserIDs {
				p.online[id] = true
			}
			p.mu.Unlock()
		case model.SocketTypeUserOnline:
			p.mu.Lock()
			p.online[env.UserID] = true
			p.mu.Unlock()
		case model.SocketTypeUserOffline:
			p.mu.Lock()
			delete(p.online, env.UserID)
			p.mu.Unlock()
		default:
			if p.onOpaque != nil {
				payload := env.Opaque
				if len(payload) == 0 {
					payload = data
				}
				p.onOpaque(payload)
			}
		}
	}
}

// RequestOnlineUsers 向服务器请求一份在线用户快照。
func (p *PresenceClient) RequestOnlineUsers() error {
	return p.conn.WriteJSON(model.SocketEnvelope{Type: model.SocketTypeGetOnlineUsers})
}

// Send 通过通用中继向其他在线端发送一段任意 JSON 负载。
func (p *PresenceClient) Send(payload interface{}) error {
	return p.conn.WriteJSON(payload)
}

// IsOnline 返回指定用户当前是否在线。
func (p *PresenceClient) IsOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

// Online 返回在线用户的快照。
func (p *PresenceClient) Online() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	return ids
}

// Close 关闭连接；服务器会向其余在线端广播本端的 user_offline。
func (p *PresenceClient) Close() error {
	err := p.conn.Close()
	<-p.done
	return err
}
