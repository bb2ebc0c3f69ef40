package widget

import (
	"testing"
	"time"

	"devtone-chat-go/internal/model"
)

// 测试对端开始输入时点亮，显式停止时熄灭。
func TestTypingIndicatorApply(t *testing.T) {
	ti := NewTypingIndicator(true, time.Second, nil)

	ti.Apply(model.TypingEvent{SessionID: "s1", IsUser: false, IsTyping: true})
	if !ti.Active() {
		t.Fatal("对端开始输入后指示器应点亮")
	}

	ti.Apply(model.TypingEvent{SessionID: "s1", IsUser: false, IsTyping: false})
	if ti.Active() {
		t.Fatal("对端停止输入后指示器应熄灭")
	}
}

// 测试本端角色的事件被忽略。
func TestTypingIndicatorIgnoresOwnRole(t *testing.T) {
	ti := NewTypingIndicator(true, time.Second, nil)

	ti.Apply(model.TypingEvent{SessionID: "s1", IsUser: true, IsTyping: true})
	if ti.Active() {
		t.Fatal("本端角色的输入事件不应点亮指示器")
	}
}

// 测试停止事件丢失时指示器在清除窗口后自动熄灭。
func TestTypingIndicatorAutoClear(t *testing.T) {
	ti := NewTypingIndicator(true, 50*time.Millisecond, nil)

	ti.Apply(model.TypingEvent{SessionID: "s1", IsUser: false, IsTyping: true})
	if !ti.Active() {
		t.Fatal("指示器应点亮")
	}

	time.Sleep(120 * time.Millisecond)
	if ti.Active() {
		t.Fatal("超过清除窗口后指示器应自动熄灭")
	}
}

// 测试续约事件会重置清除计时。
func TestTypingIndicatorRenewal(t *testing.T) {
	ti := NewTypingIndicator(true, 80*time.Millisecond, nil)

	ti.Apply(model.TypingEvent{SessionID: "s1", IsUser: false, IsTyping: true})
	time.Sleep(50 * time.Millisecond)
	// 在窗口内续约
	ti.Apply(model.TypingEvent{SessionID: "s1", IsUser: false, IsTyping: true})
	time.Sleep(50 * time.Millisecond)

	if !ti.Active() {
		t.Fatal("续约后指示器不应在原窗口到期时熄灭")
	}

	time.Sleep(80 * time.Millisecond)
	if ti.Active() {
		t.Fatal("续约窗口到期后指示器应熄灭")
	}
}

// 测试状态变化时触发回调，且重复状态不重复触发。
func TestTypingIndicatorOnChange(t *testing.T) {
	var changes []bool
	ti := NewTypingIndicator(true, time.Second, func(active bool) {
		changes = append(changes, active)
	})

	ti.Apply(model.TypingEvent{IsUser: false, IsTyping: true})
	ti.Apply(model.TypingEvent{IsUser: false, IsTyping: true}) // 续约不变状态
	ti.Apply(model.TypingEvent{IsUser: false, IsTyping: false})

	if len(changes) != 2 || changes[0] != true || changes[1] != false {
		t.Fatalf("回调序列 = %v, 期望 [true false]", changes)
	}
}
