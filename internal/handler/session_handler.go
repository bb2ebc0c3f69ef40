// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"devtone-chat-go/internal/model"
	"devtone-chat-go/internal/service"
	"devtone-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SessionHandler 负责处理会话生命周期相关的 API 请求。
type SessionHandler struct {
	sessionService service.SessionService
}

// NewSessionHandler 创建一个新的 SessionHandler 实例。
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// CreateSessionRequest 定义了创建会话 API 的请求体结构。
type CreateSessionRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone"`
	Company     string `json:"company"`
	InquiryType string `json:"inquiry_type"`
}

// Create 处理创建会话请求。
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("CreateSession: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：姓名和邮箱不能为空",
		})
		return
	}

	info := model.UserInfo{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Company:     req.Company,
		InquiryType: req.InquiryType,
	}
	session, err := h.sessionService.Create(c.Request.Context(), info)
	if err != nil {
		if errors.Is(err, service.ErrNameRequired) || errors.Is(err, service.ErrInvalidEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error()})
			return
		}
		log.Errorf("CreateSession: 创建会话失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "创建会话失败"})
		return
	}

	log.Infof("会话 %s 创建成功, 访客: %s", session.ID, session.UserName)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    session,
	})
}

// Get 处理查询单个会话的请求。
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessionService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "会话不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": session})
}

// ResolveRequest 定义了关闭会话 API 的请求体结构。
type ResolveRequest struct {
	Note string `json:"note"`
}

// Resolve 处理坐席关闭会话的请求（active -> resolved，幂等）。
func (h *SessionHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	// note 可选，请求体为空时使用默认文案
	_ = c.ShouldBindJSON(&req)

	session, err := h.sessionService.Resolve(c.Request.Context(), c.Param("id"), req.Note)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "会话不存在"})
			return
		}
		log.Errorf("ResolveSession: 关闭会话失败, session: %s, error: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "关闭会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": session})
}

// Reopen 处理重开会话的请求（resolved -> active，幂等）。
func (h *SessionHandler) Reopen(c *gin.Context) {
	session, err := h.sessionService.Reopen(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "会话不存在"})
			return
		}
		log.Errorf("ReopenSession: 重开会话失败, session: %s, error: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "重开会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": session})
}
