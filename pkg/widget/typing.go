package widget

import (
	"sync"
	"time"

	"devtone-chat-go/internal/model"
)

// DefaultTypingClear 是输入指示器在无续约事件时的自动清除时间。
const DefaultTypingClear = 3 * time.Second

// TypingIndicator 维护"对方正在输入"的本地状态。
// typing 通道不保证送达，对方的停止事件可能丢失，
// 因此指示器在 clearAfter 内收不到续约就自动熄灭。
type TypingIndicator struct {
	mu          sync.Mutex
	localIsUser bool
	clearAfter  time.Duration
	active      bool
	timer       *time.Timer
	onChange    func(active bool)
}

// NewTypingIndicator 创建一个输入指示器。
// clearAfter <= 0 时使用 DefaultTypingClear；onChange 可以为 nil。
func NewTypingIndicator(localIsUser bool, clearAfter time.Duration, onChange func(bool)) *TypingIndicator {
	if clearAfter <= 0 {
		clearAfter = DefaultTypingClear
	}
	return &TypingIndicator{
		localIsUser: localIsUser,
		clearAfter:  clearAfter,
		onChange:    onChange,
	}
}

// Apply 应用一条 typing 通道事件。
// 本端角色的事件被忽略——指示器只反映对方的输入状态。
func (t *TypingIndicator) Apply(evt model.TypingEvent) {
	if evt.IsUser == t.localIsUser {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	if !evt.IsTyping {
		t.setActiveLocked(false)
		return
	}

	t.setActiveLocked(true)
	// 续约计时：到期前没有新的 is_typing=true 事件就自动清除
	t.timer = time.AfterFunc(t.clearAfter, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.timer = nil
		t.setActiveLocked(false)
	})
}

// setActiveLocked 更新状态并在变化时触发回调，调用方必须持有 t.mu。
func (t *TypingIndicator) setActiveLocked(active bool) {
	if t.active == active {
		return
	}
	t.active = active
	if t.onChange != nil {
		t.onChange(active)
	}
}

// Active 返回指示器当前是否点亮。
func (t *TypingIndicator) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Stop 停止计时器并熄灭指示器，组件卸载时调用。
func (t *TypingIndicator) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.setActiveLocked(false)
}
