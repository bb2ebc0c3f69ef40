package handler

import (
	"net/http"

	"devtone-chat-go/internal/model"
	"devtone-chat-go/internal/service"
	"devtone-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// PresenceHandler 负责处理在线状态 WebSocket 连接。
type PresenceHandler struct {
	registry *service.PresenceRegistry
}

// NewPresenceHandler 创建一个新的 PresenceHandler 实例。
func NewPresenceHandler(registry *service.PresenceRegistry) *PresenceHandler {
	return &PresenceHandler{registry: registry}
}

// Handle 处理一个传入的 WebSocket 连接。
// 读循环按 type 分发：user_connect 登记在线，get_online_users 回复快照，
// 其余负载原样转发给除发送者外的所有连接。单条坏消息不会终止连接。
func (h *PresenceHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Info("在线状态 WebSocket 连接已建立")

	// announced 记录该连接通过 user_connect 宣告的身份；
	// 连接关闭时据此注销并广播 user_offline，未宣告的连接静默离开。
	var announced string
	defer func() {
		if announced != "" {
			h.registry.Deregister(announced, conn)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Debugf("在线状态连接读取结束: %v", err)
			return
		}

		env, err := model.ParseSocketEnvelope(data)
		if err != nil {
			// 非法 JSON：记录后保持连接，绝不因单条坏消息断开
			log.Warnf("收到非法的 socket 负载: %v", err)
			continue
		}

		switch env.Type {
		case model.SocketTypeUserConnect:
			if env.UserID == "" {
				log.Warnf("user_connect 缺少 userId，忽略")
				continue
			}
			if announced != "" && announced != env.UserID {
				// 同一连接改换身份：先注销旧身份
				h.registry.Deregister(announced, conn)
			}
			announced = env.UserID
			h.registry.Register(announced, conn)

		case model.SocketTypeGetOnlineUsers:
			h.registry.SendSnapshot(conn)

		default:
			// 未知但合法的消息按通用中继处理
			payload := env.Opaque
			if len(payload) == 0 {
				payload = data
			}
			h.registry.Relay(conn, payload)
		}
	}
}
