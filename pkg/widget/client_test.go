package widget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// recordedRequest 记录最近一次请求的路径与授权头。
type recordedRequest struct {
	path string
	auth string
}

// fakeServer 返回统一响应外壳并记录请求，用于验证客户端的路由选择。
func fakeServer(t *testing.T) (*httptest.Server, *recordedRequest) {
	t.Helper()
	last := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last.path = r.URL.Path
		last.auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    200,
			"message": "success",
			"data": map[string]interface{}{
				"id":         "m1",
				"session_id": "s1",
				"content":    "hi",
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, last
}

// 测试访客客户端与坐席客户端分别走公开路由和认证路由。
func TestClientSendMessageRouting(t *testing.T) {
	srv, last := fakeServer(t)
	ctx := context.Background()

	visitor := NewClient(srv.URL)
	if _, err := visitor.SendMessage(ctx, "s1", "m1", "hi", nil); err != nil {
		t.Fatalf("访客发送失败: %v", err)
	}
	if last.path != "/api/v1/chat/sessions/s1/messages" {
		t.Fatalf("访客请求路径 = %q", last.path)
	}
	if last.auth != "" {
		t.Fatal("访客请求不应携带授权头")
	}

	agent := NewAgentClient(srv.URL, "token-123")
	if _, err := agent.SendMessage(ctx, "s1", "m2", "hello", nil); err != nil {
		t.Fatalf("坐席发送失败: %v", err)
	}
	if last.path != "/api/v1/agent/sessions/s1/messages" {
		t.Fatalf("坐席请求路径 = %q", last.path)
	}
}

// 测试坐席客户端在每个请求上携带 Bearer 令牌，刷新后使用新令牌。
func TestAgentClientAuthHeader(t *testing.T) {
	srv, last := fakeServer(t)
	ctx := context.Background()

	agent := NewAgentClient(srv.URL, "token-123")
	if _, err := agent.SendMessage(ctx, "s1", "m1", "hi", nil); err != nil {
		t.Fatalf("坐席发送失败: %v", err)
	}
	if last.auth != "Bearer token-123" {
		t.Fatalf("授权头 = %q", last.auth)
	}

	agent.SetToken("token-456")
	if _, err := agent.SendMessage(ctx, "s1", "m2", "hi", nil); err != nil {
		t.Fatalf("坐席发送失败: %v", err)
	}
	if last.auth != "Bearer token-456" {
		t.Fatalf("刷新后授权头 = %q", last.auth)
	}
}
