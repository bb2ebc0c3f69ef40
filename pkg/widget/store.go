// Package widget 实现了可嵌入的客服聊天组件客户端：
// 会话的本地持久化与生命周期、消息通道的乐观合并、
// 输入指示器以及在线状态 socket 客户端。
package widget

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"devtone-chat-go/internal/model"
)

// DefaultSessionTTL 是本地会话记录的默认有效期。
const DefaultSessionTTL = 24 * time.Hour

// PersistedSession 是写入本地存储的会话记录。
// Timestamp 记录写入时刻，超过 TTL 的记录在恢复时被清除。
type PersistedSession struct {
	Session   model.ChatSession `json:"session"`
	UserInfo  model.UserInfo    `json:"userInfo"`
	Timestamp time.Time         `json:"timestamp"`
}

// Storage 是会话记录的底层存储接口。
// Load 在记录不存在时返回 (nil, nil)。
type Storage interface {
	Load() ([]byte, error)
	Save(data []byte) error
	Clear() error
}

// FileStorage 把会话记录保存为本地 JSON 文件。
type FileStorage struct {
	path string
}

// NewFileStorage 创建一个文件存储，path 为空时使用用户目录下的默认位置。
func NewFileStorage(path string) *FileStorage {
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".devtone-chat", "session.json")
	}
	return &FileStorage{path: path}
}

func (s *FileStorage) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}

func (s *FileStorage) Save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

func (s *FileStorage) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// MemoryStorage 是 Storage 的内存实现，用于测试和无盘环境。
type MemoryStorage struct {
	data []byte
}

func NewMemoryStorage() *MemoryStorage { return &MemoryStorage{} }

func (s *MemoryStorage) Load() ([]byte, error) { return s.data, nil }

func (s *MemoryStorage) Save(data []byte) error {
	s.data = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStorage) Clear() error {
	s.data = nil
	return nil
}

// SessionStore 在底层存储之上实现 TTL 与损坏数据的容错。
type SessionStore struct {
	storage Storage
	ttl     time.Duration
}

// NewSessionStore 创建一个会话存储，ttl <= 0 时使用 DefaultSessionTTL。
func NewSessionStore(storage Storage, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{storage: storage, ttl: ttl}
}

// Load 读取本地会话记录。
// 记录不存在、已过期或无法解析时一律返回 nil（视为不存在），
// 过期与损坏的记录会被顺手清除，绝不向调用方抛错。
func (s *SessionStore) Load() *PersistedSession {
	data, err := s.storage.Load()
	if err != nil || len(data) == 0 {
		return nil
	}

	var rec PersistedSession
	if err := json.Unmarshal(data, &rec); err != nil {
		// 损坏的数据按不存在处理
		_ = s.storage.Clear()
		return nil
	}
	if rec.Session.ID == "" {
		_ = s.storage.Clear()
		return nil
	}

	if time.Since(rec.Timestamp) > s.ttl {
		_ = s.storage.Clear()
		return nil
	}
	return &rec
}

// Save 写入会话记录并盖上当前时间戳。
func (s *SessionStore) Save(session model.ChatSession, info model.UserInfo) error {
	rec := PersistedSession{
		Session:   session,
		UserInfo:  info,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.storage.Save(data)
}

// Clear 删除本地会话记录。
func (s *SessionStore) Clear() error {
	return s.storage.Clear()
}
