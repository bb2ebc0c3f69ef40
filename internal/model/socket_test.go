package model

import "testing"

// 测试已知类型的解析。
func TestParseSocketEnvelopeKnown(t *testing.T) {
	env, err := ParseSocketEnvelope([]byte(`{"type":"user_connect","userId":"alice"}`))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if env.Type != SocketTypeUserConnect || env.UserID != "alice" {
		t.Fatalf("解析结果 = %+v", env)
	}
	if env.Opaque != nil {
		t.Fatal("已知类型不应填充 Opaque")
	}
}

// 测试未知类型不报错，原始字节进入 Opaque 变体。
func TestParseSocketEnvelopeUnknown(t *testing.T) {
	raw := []byte(`{"type":"custom_ping","nonce":42}`)
	env, err := ParseSocketEnvelope(raw)
	if err != nil {
		t.Fatalf("未知类型不应报错: %v", err)
	}
	if string(env.Opaque) != string(raw) {
		t.Fatalf("Opaque = %s, 期望原样保留 %s", env.Opaque, raw)
	}
}

// 测试非法 JSON 返回错误。
func TestParseSocketEnvelopeMalformed(t *testing.T) {
	if _, err := ParseSocketEnvelope([]byte("{not json")); err == nil {
		t.Fatal("非法 JSON 应返回错误")
	}
}
