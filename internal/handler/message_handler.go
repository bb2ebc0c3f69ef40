package handler

import (
	"errors"
	"net/http"
	"strconv"

	"devtone-chat-go/internal/model"
	"devtone-chat-go/internal/service"
	"devtone-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// MessageHandler 负责处理消息通道相关的 API 请求。
type MessageHandler struct {
	messageService service.MessageService
	typingService  service.TypingService
}

// NewMessageHandler 创建一个新的 MessageHandler 实例。
func NewMessageHandler(messageService service.MessageService, typingService service.TypingService) *MessageHandler {
	return &MessageHandler{messageService: messageService, typingService: typingService}
}

// SendMessageRequest 定义了发送消息 API 的请求体结构。
// ID 由客户端在创建时生成，服务端沿用它，便于乐观条目按 ID 合并。
type SendMessageRequest struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata *model.MessageMetadata `json:"metadata"`
}

// SendUserMessage 处理访客端发送消息的请求（is_user = true）。
// 返回已入库的消息，访客端在收到响应前就可以做乐观展示。
func (h *MessageHandler) SendUserMessage(c *gin.Context) {
	h.send(c, true)
}

// SendAgentMessage 处理坐席端发送消息的请求（is_user = false）。
func (h *MessageHandler) SendAgentMessage(c *gin.Context) {
	h.send(c, false)
}

func (h *MessageHandler) send(c *gin.Context, isUser bool) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载"})
		return
	}

	msg, err := h.messageService.Send(c.Request.Context(), c.Param("id"), req.ID, req.Content, isUser, req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "会话不存在"})
		case errors.Is(err, service.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error()})
		default:
			log.Errorf("SendMessage: 发送消息失败, session: %s, error: %v", c.Param("id"), err)
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "发送消息失败"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": msg})
}

// History 按 created_at 升序返回会话的完整消息历史。
func (h *MessageHandler) History(c *gin.Context) {
	messages, err := h.messageService.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "会话不存在"})
			return
		}
		log.Errorf("History: 查询消息历史失败, session: %s, error: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询消息历史失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": messages})
}

// MarkRead 处理坐席标记消息已读的请求。
func (h *MessageHandler) MarkRead(c *gin.Context) {
	msg, err := h.messageService.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "消息不存在"})
			return
		}
		log.Errorf("MarkRead: 标记已读失败, message: %s, error: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "标记已读失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": msg})
}

// UnreadCount 返回未读的用户消息数，可通过 session_id 参数限定会话。
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.messageService.UnreadCount(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		log.Errorf("UnreadCount: 统计未读消息失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "统计未读消息失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"count": count}})
}

// TypingRequest 定义了输入指示器 API 的请求体结构。
type TypingRequest struct {
	IsUser   bool `json:"is_user"`
	IsTyping bool `json:"is_typing"`
}

// NotifyTyping 在会话的 typing 通道上广播一条临时事件。
func (h *MessageHandler) NotifyTyping(c *gin.Context) {
	var req TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载"})
		return
	}

	if err := h.typingService.NotifyTyping(c.Request.Context(), c.Param("id"), req.IsUser, req.IsTyping); err != nil {
		// 输入指示器是尽力而为的，失败不值得让前端报错
		log.Warnf("NotifyTyping: 广播输入事件失败, session: %s, error: %v", c.Param("id"), err)
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success"})
}

// Attachment 为已转存对象存储的文件消息返回预签名下载链接。
func (h *MessageHandler) Attachment(c *gin.Context) {
	url, err := h.messageService.AttachmentURL(c.Request.Context(), c.Param("id"), c.Param("messageId"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "消息不存在"})
		case errors.Is(err, service.ErrNoAttachment):
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": err.Error()})
		default:
			log.Errorf("Attachment: 生成附件下载链接失败, message: %s, error: %v", c.Param("messageId"), err)
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "生成附件下载链接失败"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"url": url}})
}

// Search 在聊天记录索引上做全文检索，供坐席控制台使用。
func (h *MessageHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "检索关键词不能为空"})
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	hits, err := h.messageService.Search(c.Request.Context(), query, c.Query("session_id"), size)
	if err != nil {
		log.Errorf("Search: 检索聊天记录失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "检索聊天记录失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": hits})
}
