// Package model 包含了应用的数据模型定义。
package model

import "time"

// 会话状态常量，状态机只允许 active 与 resolved 互相转换。
const (
	SessionStatusActive   = "active"
	SessionStatusResolved = "resolved"
)

// ChatSession 代表一次客服会话，ID 由客户端在创建时生成。
type ChatSession struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserName    string    `gorm:"size:100;not null" json:"user_name"`
	UserEmail   string    `gorm:"size:255;not null" json:"user_email"`
	UserPhone   string    `gorm:"size:32" json:"user_phone,omitempty"`
	UserCompany string    `gorm:"size:255" json:"user_company,omitempty"`
	InquiryType string    `gorm:"size:64" json:"inquiry_type,omitempty"`
	Status      string    `gorm:"size:16;not null;default:active" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// UserInfo 是创建会话时收集的访客资料。
type UserInfo struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Company     string `json:"company,omitempty"`
	InquiryType string `json:"inquiry_type,omitempty"`
}
