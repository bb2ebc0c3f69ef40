package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"devtone-chat-go/internal/model"
)

// Client 是聊天服务端 REST API 的 HTTP 客户端，实现 API 接口。
// 默认以访客身份访问公开路由；坐席端通过 NewAgentClient 创建，
// 消息发送走认证的坐席路由并携带 Bearer 令牌。
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	agent bool
	token string
}

// NewClient 创建一个访客身份的 API 客户端。
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewAgentClient 创建一个坐席身份的 API 客户端。
// accessToken 通过坐席登录接口获取，随每个请求以 Bearer 头发送。
func NewAgentClient(baseURL, accessToken string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		agent:      true,
		token:      accessToken,
	}
}

// SetToken 更新坐席客户端的访问令牌（令牌刷新后调用）。
func (c *Client) SetToken(accessToken string) {
	c.token = accessToken
}

// apiEnvelope 对应服务端统一的响应外壳。
type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// doJSON 发送一个 JSON 请求并把响应的 data 字段解码到 out（可为 nil）。
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("服务端返回 %d: %s", resp.StatusCode, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("解析响应数据失败: %w", err)
		}
	}
	return nil
}

// CreateSession 创建一个新会话。
func (c *Client) CreateSession(ctx context.Context, info model.UserInfo) (*model.ChatSession, error) {
	var session model.ChatSession
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/chat/sessions", info, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SendMessage 发送一条消息。messageID 由客户端生成，服务端沿用它，
// 因此乐观条目与服务端副本能按同一 ID 合并。
// 访客客户端走公开路由，坐席客户端走认证路由（is_user=false）。
func (c *Client) SendMessage(ctx context.Context, sessionID, messageID, content string, meta *model.MessageMetadata) (*model.ChatMessage, error) {
	payload := map[string]interface{}{"id": messageID, "content": content}
	if meta != nil {
		payload["metadata"] = meta
	}

	path := fmt.Sprintf("/api/v1/chat/sessions/%s/messages", sessionID)
	if c.agent {
		path = fmt.Sprintf("/api/v1/agent/sessions/%s/messages", sessionID)
	}

	var msg model.ChatMessage
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// History 拉取会话的完整消息历史（created_at 升序）。
func (c *Client) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/chat/sessions/%s/messages", sessionID), nil, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// NotifyTyping 广播本端输入状态。
func (c *Client) NotifyTyping(ctx context.Context, sessionID string, isUser, isTyping bool) error {
	payload := map[string]interface{}{"is_user": isUser, "is_typing": isTyping}
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/v1/chat/sessions/%s/typing", sessionID), payload, nil)
}
