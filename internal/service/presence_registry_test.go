package service

import (
	"encoding/json"
	"testing"

	"devtone-chat-go/internal/model"
)

// stubConn 是 Conn 接口的测试替身，记录所有写入的负载。
type stubConn struct {
	writes []interface{}
	closed bool
}

func (c *stubConn) WriteJSON(v interface{}) error {
	c.writes = append(c.writes, v)
	return nil
}

func (c *stubConn) Close() error {
	c.closed = true
	return nil
}

// envelopes 过滤出写入的 SocketEnvelope 事件。
func (c *stubConn) envelopes() []model.SocketEnvelope {
	var out []model.SocketEnvelope
	for _, w := range c.writes {
		if env, ok := w.(model.SocketEnvelope); ok {
			out = append(out, env)
		}
	}
	return out
}

// 测试上线广播发给包括宣告者在内的所有连接。
func TestRegistryRegisterBroadcastsToAll(t *testing.T) {
	r := NewPresenceRegistry()
	a, b := &stubConn{}, &stubConn{}

	r.Register("alice", a)
	r.Register("bob", b)

	// bob 上线时 alice 和 bob 都应收到 user_online
	for _, c := range []*stubConn{a, b} {
		envs := c.envelopes()
		found := false
		for _, env := range envs {
			if env.Type == model.SocketTypeUserOnline && env.UserID == "bob" {
				found = true
			}
		}
		if !found {
			t.Fatalf("连接未收到 bob 的 user_online 事件: %+v", envs)
		}
	}
}

// 测试同一 userId 重连时旧连接被关闭并替换，不产生重复条目。
func TestRegistryReconnectReplaces(t *testing.T) {
	r := NewPresenceRegistry()
	old, fresh := &stubConn{}, &stubConn{}

	r.Register("alice", old)
	r.Register("alice", fresh)

	if !old.closed {
		t.Fatal("旧连接应被关闭")
	}
	users := r.OnlineUsers()
	if len(users) != 1 || users[0] != "alice" {
		t.Fatalf("在线列表 = %v, 期望只有 alice 一条", users)
	}

	// 旧连接的读循环退出后触发的注销不应移除新连接
	r.Deregister("alice", old)
	if got := r.OnlineUsers(); len(got) != 1 {
		t.Fatalf("旧连接注销后新连接被误删: %v", got)
	}
}

// 测试注销后向其余连接广播 user_offline，重复注销是空操作。
func TestRegistryDeregister(t *testing.T) {
	r := NewPresenceRegistry()
	a, b := &stubConn{}, &stubConn{}
	r.Register("alice", a)
	r.Register("bob", b)

	r.Deregister("alice", a)
	r.Deregister("alice", a) // 重复断开

	offline := 0
	for _, env := range b.envelopes() {
		if env.Type == model.SocketTypeUserOffline && env.UserID == "alice" {
			offline++
		}
	}
	if offline != 1 {
		t.Fatalf("bob 收到 %d 次 alice 的 user_offline, 期望 1 次", offline)
	}

	if got := r.OnlineUsers(); len(got) != 1 || got[0] != "bob" {
		t.Fatalf("在线列表 = %v, 期望只剩 bob", got)
	}
}

// 测试快照只回复给请求方。
func TestRegistrySnapshot(t *testing.T) {
	r := NewPresenceRegistry()
	a, b := &stubConn{}, &stubConn{}
	r.Register("alice", a)
	r.Register("bob", b)

	before := len(b.writes)
	r.SendSnapshot(a)

	envs := a.envelopes()
	last := envs[len(envs)-1]
	if last.Type != model.SocketTypeOnlineUsers {
		t.Fatalf("请求方收到的最后一条事件 = %q, 期望 online_users", last.Type)
	}
	if len(last.UserIDs) != 2 {
		t.Fatalf("快照包含 %d 个用户, 期望 2 个", len(last.UserIDs))
	}
	if len(b.writes) != before {
		t.Fatal("快照不应发给请求方以外的连接")
	}
}

// 测试未建模负载被原样转发给除发送者外的所有连接。
func TestRegistryRelayExceptSender(t *testing.T) {
	r := NewPresenceRegistry()
	a, b, c := &stubConn{}, &stubConn{}, &stubConn{}
	r.Register("alice", a)
	r.Register("bob", b)
	r.Register("carol", c)

	payload := json.RawMessage(`{"type":"custom_ping","nonce":42}`)
	r.Relay(a, payload)

	for name, conn := range map[string]*stubConn{"bob": b, "carol": c} {
		found := false
		for _, w := range conn.writes {
			if raw, ok := w.(json.RawMessage); ok && string(raw) == string(payload) {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s 未收到原样转发的负载", name)
		}
	}
	for _, w := range a.writes {
		if _, ok := w.(json.RawMessage); ok {
			t.Fatal("负载不应回传给发送者")
		}
	}
}
