package model

import "time"

// 消息元数据的 message_type 取值。
const (
	MessageTypeText           = "text"
	MessageTypeFile           = "file"
	MessageTypeSystemClose    = "system_close"
	MessageTypeSystemResolved = "system_resolved"
	MessageTypeSystemReopened = "system_reopened"
)

// MessageMetadata 是消息的可选结构化负载，由 message_type 区分。
// 文件消息的内容小于阈值时内联在 FileData 中，否则转存对象存储并记录 ObjectKey。
type MessageMetadata struct {
	MessageType string `json:"message_type"`
	FileName    string `json:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	FileData    string `json:"file_data,omitempty"`
	ObjectKey   string `json:"object_key,omitempty"`
}

// ChatMessage 代表会话中的一条消息。
// 消息按 CreatedAt 升序排列，该顺序在所有订阅端必须一致；
// 创建后唯一允许的变更是把 IsRead 翻转为 true。
type ChatMessage struct {
	ID        string           `gorm:"primaryKey;size:36" json:"id"`
	SessionID string           `gorm:"size:36;not null;index" json:"session_id"`
	Content   string           `gorm:"type:text" json:"content"`
	IsUser    bool             `gorm:"not null" json:"is_user"`
	IsRead    bool             `gorm:"not null;default:false" json:"is_read"`
	Metadata  *MessageMetadata `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// IsSystem 判断该消息是否为系统合成消息（关闭/重开提示等）。
func (m *ChatMessage) IsSystem() bool {
	if m.Metadata == nil {
		return false
	}
	switch m.Metadata.MessageType {
	case MessageTypeSystemClose, MessageTypeSystemResolved, MessageTypeSystemReopened:
		return true
	}
	return false
}
